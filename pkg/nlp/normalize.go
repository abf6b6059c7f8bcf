package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Tokenize splits text into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Lower lower-cases text with the rules of the locale's language, which
// matters for Turkish dotted and dotless i.
func Lower(locale Locale, text string) string {
	return cases.Lower(locale.Tag()).String(text)
}

// Normalize tokenizes text, lower-cases the tokens for the locale and stems
// them with the default registry.
func Normalize(locale Locale, text string) ([]string, error) {
	stemmer, err := StemmerFor(locale)
	if err != nil {
		return nil, err
	}
	return stemmer.Stem(Tokenize(Lower(locale, text))), nil
}
