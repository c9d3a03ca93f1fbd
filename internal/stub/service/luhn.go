package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// luhnGenerator produces cryptographically secure random numeric tokens that
// pass Luhn validation, matching the shape of payment card numbers.
type luhnGenerator struct{}

// Generate creates a Luhn-valid numeric token of the specified length.
func (luhnGenerator) Generate(length int) (string, error) {
	return generateLuhnWithSuffix(length, "")
}

// generateLuhnWithSuffix creates a Luhn-valid numeric token of the given
// length whose trailing characters equal suffix. The suffix must be numeric.
// The first digit is chosen so the whole token satisfies the Luhn checksum:
// the doubling transform maps digits onto every residue mod 10, so a valid
// leading digit always exists.
func generateLuhnWithSuffix(length int, suffix string) (string, error) {
	if length < 2 {
		return "", errors.New("length must be at least 2 for luhn tokens")
	}
	if length > 255 {
		return "", errors.New("length must not exceed 255")
	}
	if len(suffix) > length-1 {
		return "", errors.New("suffix does not leave room for a check adjustment digit")
	}

	digits := make([]int, length)

	for i, c := range suffix {
		if c < '0' || c > '9' {
			return "", errors.New("suffix must be numeric")
		}
		digits[length-len(suffix)+i] = int(c - '0')
	}

	for i := 1; i < length-len(suffix); i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = int(n.Int64())
	}

	for d := 0; d <= 9; d++ {
		digits[0] = d
		if validateLuhn(digits) {
			break
		}
	}

	token := make([]byte, length)
	for i, d := range digits {
		token[i] = byte('0' + d)
	}

	return string(token), nil
}

// ValidateLuhn checks if a numeric token satisfies the Luhn checksum.
func ValidateLuhn(token string) error {
	if len(token) < 2 {
		return errors.New("token must be at least 2 characters for luhn validation")
	}

	digits := make([]int, len(token))
	for i, c := range token {
		if c < '0' || c > '9' {
			return errors.New("token must contain only numeric characters")
		}
		digits[i] = int(c - '0')
	}

	if !validateLuhn(digits) {
		return errors.New("token failed luhn validation")
	}

	return nil
}

// validateLuhn validates a complete number (including check digit) using the
// Luhn algorithm.
func validateLuhn(digits []int) bool {
	sum := 0
	length := len(digits)

	for i := 0; i < length; i++ {
		digit := digits[length-1-i]

		// Double every second digit from the right (skipping the check digit).
		if i%2 == 1 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
	}

	return sum%10 == 0
}
