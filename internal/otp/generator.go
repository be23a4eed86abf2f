package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"
)

// CodeLength is the number of digits in every issued passcode.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// Generator produces passcodes.
type Generator interface {
	Generate() string
}

// DigitGenerator draws codes uniformly from [000000, 999999] using crypto/rand.
type DigitGenerator struct{}

// NewDigitGenerator returns the default passcode generator.
func NewDigitGenerator() DigitGenerator {
	return DigitGenerator{}
}

// Generate implements Generator. It never fails: if the system randomness
// source is unavailable it falls back to math/rand, which is still uniform.
func (DigitGenerator) Generate() string {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return fmt.Sprintf("%0*d", CodeLength, mrand.Int63n(codeSpace.Int64()))
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64())
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func() string

// Generate implements Generator.
func (f GeneratorFunc) Generate() string { return f() }
