package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator_Generate(t *testing.T) {
	t.Run("fixed length", func(t *testing.T) {
		gen := New(6)

		code, err := gen.Generate()

		assert.NoError(t, err)
		assert.Len(t, code, 6)
	})

	t.Run("alphabet membership", func(t *testing.T) {
		gen := New(32)

		code, err := gen.Generate()

		assert.NoError(t, err)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected character %q", r)
		}
	})

	t.Run("non-positive length falls back to default", func(t *testing.T) {
		gen := New(0)

		code, err := gen.Generate()

		assert.NoError(t, err)
		assert.Len(t, code, DefaultLength)
		assert.Equal(t, DefaultLength, gen.Length())
	})

	t.Run("codes are independent across calls", func(t *testing.T) {
		gen := New(12)
		seen := make(map[string]struct{})

		for i := 0; i < 1000; i++ {
			code, err := gen.Generate()

			assert.NoError(t, err)
			_, dup := seen[code]
			assert.False(t, dup, "duplicate code %q", code)
			seen[code] = struct{}{}
		}
	})
}
