package domain

import (
	"github.com/allisson/protect/internal/errors"
)

// Stub service error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors to
// provide context for protect/reveal failures.
var (
	// ErrInvalidPolicy indicates a policy definition is malformed.
	ErrInvalidPolicy = errors.Wrap(errors.ErrInvalidInput, "invalid policy")

	// ErrTokenNotFound indicates the protected value is not present in the
	// vault, so it cannot be revealed.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "protected value not found")
)
