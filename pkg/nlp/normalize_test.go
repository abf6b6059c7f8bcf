package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"Hello", "world", "42"}, Tokenize("Hello, world! 42"))
	assert.Empty(t, Tokenize(" ,.;! "))
}

func TestLower_Turkish(t *testing.T) {
	assert.Equal(t, "ışık", Lower("tr", "IŞIK"))
	assert.Equal(t, "isik", Lower("en", "ISIK"))
}

func TestNormalize(t *testing.T) {
	tokens, err := Normalize("en-US", "Running CATS")
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "cat"}, tokens)

	_, err = Normalize("pl", "cokolwiek")
	assert.ErrorIs(t, err, ErrUnsupportedLocale)
}
