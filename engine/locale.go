package engine

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/minios-linux/i18nlens/store"
)

// DefaultLocale is the bucket for files without a locale suffix.
const DefaultLocale = "default"

// localeSuffix matches a trailing _<lang>[_<REGION>] on a base name.
var localeSuffix = regexp.MustCompile(`_([a-z]{2,3}(?:_(?:[A-Z]{2}|[0-9]{3}))?)$`)

// keyPattern is the shape of a valid translation key.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*$`)

// LocaleOf derives the locale and format of a translation file from its
// name: messages_en_US.yml is (en_US, tree), messages.properties is
// (default, flat). Files with other extensions are not translation files.
func LocaleOf(path string) (string, store.Format, bool) {
	format, ok := store.FormatForPath(path)
	if !ok {
		return "", 0, false
	}
	return localeOfBase(baseName(path)), format, true
}

func localeOfBase(base string) string {
	if m := localeSuffix.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return DefaultLocale
}

// bundleName strips the extension and locale suffix: messages_ko.yml → messages.
func bundleName(path string) string {
	base := baseName(path)
	if loc := localeSuffix.FindStringIndex(base); loc != nil {
		return base[:loc[0]]
	}
	return base
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidKey reports whether key is one or more dot-joined [a-zA-Z0-9_]+
// segments.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// GroupPath returns the key without its last segment ("" for a one-segment
// key).
func GroupPath(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[:i]
	}
	return ""
}
