package nlp

import (
	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/french"
	"github.com/blevesearch/snowballstem/german"
	"github.com/blevesearch/snowballstem/italian"
	"github.com/blevesearch/snowballstem/portuguese"
	"github.com/blevesearch/snowballstem/russian"
	"github.com/blevesearch/snowballstem/spanish"
	"github.com/blevesearch/snowballstem/turkish"
)

// snowballStem wraps a generated snowball program. Each call gets its own
// Env, so one stemmer can be shared between goroutines.
func snowballStem(program func(*snowballstem.Env) bool) StemmerFunc {
	return func(word string) string {
		if word == "" {
			return word
		}
		env := snowballstem.NewEnv(word)
		program(env)
		return env.Current()
	}
}

// Catalan and Polish have no snowball program in the library and stay
// unregistered.
func newSnowballRegistry() *Registry {
	r := NewRegistry()
	r.Register("de", snowballStem(german.Stem))
	r.Register("en", snowballStem(english.Stem))
	r.Register("es", snowballStem(spanish.Stem))
	r.Register("fr", snowballStem(french.Stem))
	r.Register("it", snowballStem(italian.Stem))
	r.Register("pt", snowballStem(portuguese.Stem))
	r.Register("ru", snowballStem(russian.Stem))
	r.Register("tr", snowballStem(turkish.Stem))
	return r
}
