package propfile

import "strings"

// Edits work on decoded text (see Decode) and touch only the region that
// belongs to one key. Everything else, comments and line endings included,
// is returned byte-for-byte. Entries are located with the same line grammar
// Parse uses, so an edit always lands on the entry Parse reads.

// span is the location of one logical entry in text.
type span struct {
	key        string
	start      int  // first byte of the entry's first line
	valueStart int  // first byte of the value
	valueEnd   int  // end of the last line, before its line break
	end        int  // after the last line break
	bare       bool // no separator: the line is the key alone
}

// nextLine returns the end of the line starting at pos, before its line
// break, and the start of the following line.
func nextLine(text string, pos int) (end, next int) {
	i := strings.IndexByte(text[pos:], '\n')
	if i < 0 {
		return len(text), len(text)
	}
	end = pos + i
	if end > pos && text[end-1] == '\r' {
		return end - 1, pos + i + 1
	}
	return end, end + 1
}

// entries lists the logical entries of text in file order. Lines Parse
// would reject are skipped.
func entries(text string) []span {
	var out []span
	for pos := 0; pos < len(text); {
		lineEnd, next := nextLine(text, pos)
		body := pos
		for body < lineEnd && isBlank(text[body]) {
			body++
		}
		if body == lineEnd || text[body] == '#' || text[body] == '!' {
			pos = next
			continue
		}

		// Join continuation lines, remembering where each logical byte
		// came from.
		var logical []byte
		var offs []int
		from, to := body, lineEnd
		for {
			for i := from; i < to; i++ {
				logical = append(logical, text[i])
				offs = append(offs, i)
			}
			if !continues(string(logical)) {
				break
			}
			logical = logical[:len(logical)-1]
			offs = offs[:len(offs)-1]
			if next >= len(text) {
				break
			}
			from = next
			lineEnd, next = nextLine(text, from)
			for from < lineEnd && isBlank(text[from]) {
				from++
			}
			to = lineEnd
		}

		keyEnd, valueStart := separator(string(logical))
		key, err := unescape(string(logical[:keyEnd]))
		if err == nil && key != "" {
			sp := span{
				key:      key,
				start:    pos,
				valueEnd: lineEnd,
				end:      next,
				bare:     keyEnd == len(logical),
			}
			sp.valueStart = lineEnd
			if valueStart < len(offs) {
				sp.valueStart = offs[valueStart]
			}
			out = append(out, sp)
		}
		pos = next
	}
	return out
}

// SetValue replaces the value of key, or appends "key=value" when the key is
// not present. When key is defined more than once, the last definition is
// edited, as that is the one Parse reads. Whitespace between the separator
// and the old value is kept.
func SetValue(text, key, value string) string {
	escaped := EscapeValue(value)

	var found *span
	for _, sp := range entries(text) {
		if sp.key == key {
			found = &sp
		}
	}
	if found == nil {
		nl := lineBreak(text)
		var b strings.Builder
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteString(nl)
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escaped)
		b.WriteString(nl)
		return b.String()
	}

	if found.bare {
		escaped = "=" + escaped
	}
	return text[:found.valueStart] + escaped + text[found.valueEnd:]
}

// DeleteKey removes every logical entry for key, including continuation
// lines and the trailing line break. It reports whether the key was found.
func DeleteKey(text, key string) (string, bool) {
	var spans []span
	for _, sp := range entries(text) {
		if sp.key == key {
			spans = append(spans, sp)
		}
	}
	if len(spans) == 0 {
		return text, false
	}

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp.start])
		last = sp.end
	}
	b.WriteString(text[last:])
	out := b.String()

	// The last line had no break: drop the break that led into it.
	if tail := spans[len(spans)-1]; tail.valueEnd == len(text) {
		out = strings.TrimSuffix(out, "\n")
		out = strings.TrimSuffix(out, "\r")
	}
	return out, true
}

// lineBreak returns the line ending used by text, "\n" if none is present.
func lineBreak(text string) string {
	if i := strings.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// EscapeValue escapes a value so that Parse reads it back unchanged.
func EscapeValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		switch c := v[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case ' ', '=', ':':
			if i == 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
