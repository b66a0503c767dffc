package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// OTPLength is the number of digits in a verification code.
const OTPLength = 6

// OTPGenerator produces one-time verification codes.
type OTPGenerator interface {
	Generate() (string, error)
}

// DigitGenerator draws each digit independently and uniformly from 0-9.
type DigitGenerator struct {
	length int
	source io.Reader
}

var _ OTPGenerator = (*DigitGenerator)(nil)

// NewDigitGenerator returns a generator of OTPLength-digit codes backed by crypto/rand.
func NewDigitGenerator() *DigitGenerator {
	return &DigitGenerator{length: OTPLength, source: rand.Reader}
}

var ten = big.NewInt(10)

// Generate returns a fixed-length numeric code.
func (g *DigitGenerator) Generate() (string, error) {
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(g.source, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// IsWellFormedOTP reports whether code has the expected length and only digits.
func IsWellFormedOTP(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
