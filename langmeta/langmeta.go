// Package langmeta describes locales for display: the name in the locale's
// own language, the English name, and a flag emoji for its region.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes one locale.
type Meta struct {
	Tag     language.Tag
	Name    string // in the locale's own language
	English string
	Flag    string
}

// Label returns "Name (English)", or just one of them when they agree or
// one is unknown.
func (m Meta) Label() string {
	switch {
	case m.Name == "":
		return m.English
	case m.English == "" || m.English == m.Name:
		return m.Name
	default:
		return m.Name + " (" + m.English + ")"
	}
}

// canonicalize turns a file-name locale (pt_br) into BCP 47 form (pt-BR).
func canonicalize(locale string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns display metadata for a locale such as ko, pt_BR or
// es_419. It reports false for strings that are not locale tags.
func Resolve(locale string) (Meta, bool) {
	tag, err := language.Parse(canonicalize(locale))
	if err != nil {
		return Meta{}, false
	}
	m := Meta{
		Tag:     tag,
		Name:    display.Self.Name(tag),
		English: display.English.Tags().Name(tag),
	}
	if region, conf := tag.Region(); conf != language.No {
		m.Flag = flagFromRegion(region.String())
	}
	return m, true
}

// flagFromRegion maps a two-letter region code to its regional indicator
// pair. Numeric regions (419) have no flag.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, c := range strings.ToUpper(region) {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
