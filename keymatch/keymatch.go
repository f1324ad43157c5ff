// Package keymatch finds i18n key occurrences in source text.
//
// A Matcher wraps a user-configurable regular expression. When the
// expression has capturing groups, the first group that participated in a
// match is the key; otherwise the whole match is. The matcher only scans
// text; resolving keys is up to the caller.
package keymatch

import (
	"iter"
	"regexp"

	"github.com/charmbracelet/log"
)

// DefaultPattern matches two or more dot-joined identifier segments.
const DefaultPattern = `([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)+)`

var defaultRe = regexp.MustCompile(DefaultPattern)

// Match is one key occurrence. Start and End are byte offsets of the key
// within the scanned text.
type Match struct {
	Key   string
	Start int
	End   int
}

// Matcher scans text for keys.
type Matcher struct {
	re *regexp.Regexp
}

// New compiles pattern. An empty pattern selects DefaultPattern; a pattern
// that fails to compile is reported on logger and replaced by
// DefaultPattern.
func New(pattern string, logger *log.Logger) *Matcher {
	if pattern == "" {
		return &Matcher{re: defaultRe}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid key pattern, using default", "pattern", pattern, "err", err, "default", DefaultPattern)
		}
		return &Matcher{re: defaultRe}
	}
	return &Matcher{re: re}
}

// Pattern returns the expression in effect.
func (m *Matcher) Pattern() string {
	return m.re.String()
}

// Matches returns the key occurrences in text, left to right and
// non-overlapping. The sequence can be iterated any number of times; each
// iteration scans text afresh.
func (m *Matcher) Matches(text string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for _, loc := range m.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			for g := 2; g+1 < len(loc); g += 2 {
				if loc[g] >= 0 {
					start, end = loc[g], loc[g+1]
					break
				}
			}
			if start == end {
				continue
			}
			if !yield(Match{Key: text[start:end], Start: start, End: end}) {
				return
			}
		}
	}
}

// Keys collects the keys of all matches in text.
func (m *Matcher) Keys(text string) []string {
	var keys []string
	for match := range m.Matches(text) {
		keys = append(keys, match.Key)
	}
	return keys
}
