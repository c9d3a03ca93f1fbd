// Package service implements the stub's token generation and in-memory vault.
package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/allisson/protect/internal/stub/domain"
)

const (
	numericChars      = "0123456789"
	alphanumericChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// TokenGenerator produces tokens of a given length for one format.
type TokenGenerator interface {
	Generate(length int) (string, error)
}

// NewTokenGenerator creates a token generator for the given format.
// Passthrough has no generator; the vault short-circuits it.
func NewTokenGenerator(format domain.Format) (TokenGenerator, error) {
	switch format {
	case domain.FormatUUID:
		return uuidGenerator{}, nil
	case domain.FormatNumeric:
		return charsetGenerator{charset: numericChars, minLength: 1}, nil
	case domain.FormatAlphanumeric:
		return charsetGenerator{charset: alphanumericChars, minLength: 1}, nil
	case domain.FormatLuhn:
		return luhnGenerator{}, nil
	default:
		return nil, fmt.Errorf("no token generator for format %q", string(format))
	}
}

// uuidGenerator produces UUIDv7 tokens. The length parameter is ignored.
type uuidGenerator struct{}

func (uuidGenerator) Generate(length int) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// charsetGenerator produces cryptographically secure random tokens drawn from
// a fixed character set.
type charsetGenerator struct {
	charset   string
	minLength int
}

func (g charsetGenerator) Generate(length int) (string, error) {
	if length < g.minLength {
		return "", fmt.Errorf("length must be at least %d", g.minLength)
	}
	if length > 255 {
		return "", errors.New("length must not exceed 255")
	}

	token := make([]byte, length)
	charsetLen := big.NewInt(int64(len(g.charset)))

	for i := range token {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random character: %w", err)
		}
		token[i] = g.charset[n.Int64()]
	}

	return string(token), nil
}
