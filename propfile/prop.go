// Package propfile implements reading and in-place editing of Java
// .properties translation files.
//
// Format: key=value pairs (the separator may also be ':' or whitespace).
// Lines starting with '#' or '!' are comments. A value ending in an odd
// number of backslashes continues on the next line; the continuation's
// leading whitespace is dropped. Keys and values may contain escapes
// (\t, \n, \r, \f, \uXXXX, \<char>), decoded on read.
//
// Files are read as UTF-8 when valid and as ISO-8859-1 otherwise, which is
// how javac-era message bundles are usually stored. The detected Encoding is
// kept so edits can be written back in the same encoding.
//
// File naming convention: one file per locale with the locale as suffix:
//
//	src/main/resources/messages.properties     (default)
//	src/main/resources/messages_ko.properties  (ko)
package propfile

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encoding identifies the byte encoding of a .properties file.
type Encoding int

const (
	EncodingUTF8    Encoding = iota // plain UTF-8
	EncodingUTF8BOM                 // UTF-8 with a byte order mark
	EncodingLatin1                  // ISO-8859-1
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// String returns a short name for the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingUTF8BOM:
		return "utf-8-bom"
	case EncodingLatin1:
		return "iso-8859-1"
	default:
		return "utf-8"
	}
}

// Decode converts raw file content to text and reports the encoding it was
// stored in.
func Decode(data []byte) (string, Encoding) {
	if bytes.HasPrefix(data, bom) && utf8.Valid(data[len(bom):]) {
		return string(data[len(bom):]), EncodingUTF8BOM
	}
	if utf8.Valid(data) {
		return string(data), EncodingUTF8
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO-8859-1 maps every byte; this only guards against decoder misuse.
		return string(data), EncodingUTF8
	}
	return string(text), EncodingLatin1
}

// Encode converts text back to bytes in the given encoding. Characters that
// ISO-8859-1 cannot represent are written as \uXXXX escapes.
func Encode(text string, enc Encoding) []byte {
	switch enc {
	case EncodingUTF8BOM:
		return append(append([]byte{}, bom...), text...)
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewEncoder().String(escapeNonLatin1(text))
		if err != nil {
			return []byte(text)
		}
		return []byte(out)
	default:
		return []byte(text)
	}
}

func escapeNonLatin1(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r <= 0xFF:
			b.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&b, `\u%04X\u%04X`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&b, `\u%04X`, r)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// Entry is one logical key/value pair.
type Entry struct {
	Key   string
	Value string
	// Line is the 1-based line on which the entry starts.
	Line int
}

// File represents a parsed .properties file.
type File struct {
	entries  []Entry
	index    map[string]int
	encoding Encoding
}

// Parse parses .properties content from a byte slice. Duplicate keys keep
// their first position and their last value, matching java.util.Properties.
func Parse(data []byte) (*File, error) {
	text, enc := Decode(data)
	f := &File{index: make(map[string]int), encoding: enc}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	rawLines := strings.Split(text, "\n")

	for i := 0; i < len(rawLines); i++ {
		start := i
		trimmed := strings.TrimLeft(rawLines[i], " \t\f")
		if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!' {
			continue
		}

		logical := trimmed
		for continues(logical) && i+1 < len(rawLines) {
			i++
			logical = logical[:len(logical)-1] + strings.TrimLeft(rawLines[i], " \t\f")
		}
		if continues(logical) {
			logical = logical[:len(logical)-1]
		}

		rawKey, rawValue := splitKeyValue(logical)
		key, err := unescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("line %d: key: %w", start+1, err)
		}
		value, err := unescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("line %d: value of %q: %w", start+1, key, err)
		}
		if key == "" {
			continue
		}

		if idx, exists := f.index[key]; exists {
			f.entries[idx].Value = value
			continue
		}
		f.index[key] = len(f.entries)
		f.entries = append(f.entries, Entry{Key: key, Value: value, Line: start + 1})
	}

	return f, nil
}

// continues reports whether a line ends in an unescaped backslash.
func continues(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// splitKeyValue splits a logical line at the first unescaped '=', ':' or
// whitespace. Whitespace around the separator is dropped.
func splitKeyValue(s string) (key, value string) {
	keyEnd, valueStart := separator(s)
	return s[:keyEnd], s[valueStart:]
}

// separator returns the offset where the key of a logical line ends and the
// offset where its value starts. keyEnd == len(s) means the line has no
// separator at all.
func separator(s string) (keyEnd, valueStart int) {
	keyEnd = len(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '=' || c == ':' || isBlank(c) {
			keyEnd = i
			break
		}
	}
	i := keyEnd
	for i < len(s) && isBlank(s[i]) {
		i++
	}
	if i < len(s) && (s[i] == '=' || s[i] == ':') {
		i++
		for i < len(s) && isBlank(s[i]) {
			i++
		}
	}
	return keyEnd, i
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f'
}

// unescape decodes backslash escapes, including \uXXXX and surrogate pairs.
func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	var high rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("truncated unicode escape %q", s[i-1:])
			}
			n, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("malformed unicode escape %q", s[i-1:i+5])
			}
			i += 4
			r := rune(n)
			switch {
			case r >= 0xD800 && r < 0xDC00:
				high = r
				continue
			case r >= 0xDC00 && r < 0xE000 && high != 0:
				r = 0x10000 + (high-0xD800)<<10 + (r - 0xDC00)
			}
			high = 0
			b.WriteRune(r)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Keys returns all keys in document order.
func (f *File) Keys() []string {
	keys := make([]string, len(f.entries))
	for i, e := range f.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns all entries in document order.
func (f *File) Entries() []Entry {
	return append([]Entry(nil), f.entries...)
}

// Get returns the value for key and whether it was found.
func (f *File) Get(key string) (string, bool) {
	if idx, ok := f.index[key]; ok {
		return f.entries[idx].Value, true
	}
	return "", false
}

// Encoding returns the encoding the file was stored in.
func (f *File) Encoding() Encoding {
	return f.encoding
}

// Values returns a map of key → value.
func (f *File) Values() map[string]string {
	m := make(map[string]string, len(f.entries))
	for _, e := range f.entries {
		m[e.Key] = e.Value
	}
	return m
}
