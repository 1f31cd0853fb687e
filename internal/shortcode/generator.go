// Package shortcode generates the random codes assigned to URL mappings.
package shortcode

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the 62-character set short codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is used when no explicit code length is configured.
const DefaultLength = 6

// Generator produces random short codes of a fixed length. Codes are
// sampled uniformly and independently, so collision handling is left to
// the caller.
type Generator struct {
	length int
}

// New returns a Generator producing codes of the given length.
// Non-positive lengths fall back to DefaultLength.
func New(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}

	return &Generator{length: length}
}

// Generate returns a new random short code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}
