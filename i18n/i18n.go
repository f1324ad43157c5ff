// Package i18n translates the user-facing strings of i18nlens itself.
//
// Catalogs are gettext .po files embedded under
// locales/<lang>/LC_MESSAGES/i18nlens.po and read with gotext. Untranslated
// strings pass through unchanged.
//
//	i18n.Init("") // from LANGUAGE, LC_ALL, LC_MESSAGES, LANG
//	fmt.Println(i18n.Tf("%d keys", n))
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "i18nlens"

var po *gotext.Locale

// Init loads the catalog for language l, or for the language of the
// environment when l is empty. Call it once before T, Tf or N.
func Init(l string) {
	if l == "" {
		l = detectLanguage()
	}
	po = gotext.NewLocaleFSWithPath(l, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates msgid.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// Tf translates format and applies args to it.
func Tf(format string, args ...any) string {
	if po == nil {
		return fmt.Sprintf(format, args...)
	}
	return po.Get(format, args...)
}

// N picks the singular or plural translation for n and applies n to it.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return fmt.Sprintf(singular, n)
		}
		return fmt.Sprintf(plural, n)
	}
	return po.GetN(singular, plural, n, n)
}

// detectLanguage follows gettext's LANGUAGE > LC_ALL > LC_MESSAGES > LANG
// priority.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		val, _, _ = strings.Cut(val, ".")
		val, _, _ = strings.Cut(val, "@")
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
