package nlp

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedLocale is returned when no stemmer is registered for the
// root code of a locale.
var ErrUnsupportedLocale = errors.New("unsupported locale")

// UnsupportedLocaleError carries the locale that could not be resolved.
type UnsupportedLocaleError struct {
	Locale Locale
}

func (e *UnsupportedLocaleError) Error() string {
	return fmt.Sprintf("no stemmer configured for locale '%s'", e.Locale)
}

func (e *UnsupportedLocaleError) Is(target error) bool {
	return target == ErrUnsupportedLocale
}

// Stemmer reduces word tokens to their stems. Implementations must be safe
// for concurrent use.
type Stemmer interface {
	Stem(tokens []string) []string
}

// StemmerFunc adapts a single-word stem function to the Stemmer interface.
type StemmerFunc func(word string) string

// Stem applies f to every token.
func (f StemmerFunc) Stem(tokens []string) []string {
	stems := make([]string, len(tokens))
	for i, token := range tokens {
		stems[i] = f(token)
	}
	return stems
}

// Registry maps root language codes to stemmers.
type Registry struct {
	mu       sync.RWMutex
	stemmers map[string]Stemmer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stemmers: make(map[string]Stemmer)}
}

// Register binds a stemmer to a root code. The code is normalised the same
// way lookups are, so Register("ES", s) serves "es-MX".
func (r *Registry) Register(root string, stemmer Stemmer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stemmers[RootLocale(Locale(root))] = stemmer
}

// StemmerFor returns the stemmer registered for the root code of locale.
func (r *Registry) StemmerFor(locale Locale) (Stemmer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stemmer, ok := r.stemmers[locale.Root()]
	if !ok || stemmer == nil {
		return nil, &UnsupportedLocaleError{Locale: locale}
	}
	return stemmer, nil
}

// Roots lists the registered root codes in sorted order.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roots := make([]string, 0, len(r.stemmers))
	for root := range r.stemmers {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

var defaultRegistry = newSnowballRegistry()

// DefaultRegistry returns the registry populated with the snowball stemmers.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// StemmerFor looks locale up in the default registry.
func StemmerFor(locale Locale) (Stemmer, error) {
	return defaultRegistry.StemmerFor(locale)
}
