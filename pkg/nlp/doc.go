// Package nlp holds the locale helpers and the stemmer registry used to
// normalise text per language.
//
// Stemmers are selected by the root language code of a locale, so "es-MX"
// and "es-ES" share the Spanish stemmer. The algorithms themselves come from
// the snowball library and are treated as opaque.
//
// The default registry covers de, en, es, fr, it, pt, ru and tr. The snowball
// library ships no Catalan or Polish program, so "ca" and "pl" are not
// registered and stemming them fails with ErrUnsupportedLocale.
package nlp
