package nlp

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale is a language tag such as "en" or "es-MX".
type Locale string

func (l Locale) String() string {
	return string(l)
}

// Root returns the root language code of the locale, e.g. "es" for "es-MX".
func (l Locale) Root() string {
	return RootLocale(l)
}

// Tag parses the locale into a language tag. Unparseable locales yield
// language.Und.
func (l Locale) Tag() language.Tag {
	tag, err := language.Parse(string(l))
	if err != nil {
		return language.Und
	}
	return tag
}

// RootLocale extracts the base language of a locale. Well-formed tags are
// resolved through x/text; anything else falls back to the prefix before the
// first '-' or '_'.
func RootLocale(l Locale) string {
	s := strings.TrimSpace(string(l))
	if s == "" {
		return ""
	}

	if tag, err := language.Parse(s); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}

	s = strings.ToLower(s)
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	return s
}

// ParseLocales converts a list of raw codes into locales, skipping blanks.
func ParseLocales(codes ...string) []Locale {
	locales := make([]Locale, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		locales = append(locales, Locale(code))
	}
	return locales
}
