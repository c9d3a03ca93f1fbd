// Package domain defines the stub service's protection policy model and errors.
package domain

import (
	"fmt"
)

// Format identifies the shape of tokens a policy produces.
type Format string

// Supported token formats.
const (
	// FormatPassthrough returns the input unchanged. Used for identity
	// round-trip testing of clients.
	FormatPassthrough Format = "passthrough"
	// FormatUUID produces UUIDv7 tokens.
	FormatUUID Format = "uuid"
	// FormatNumeric produces random numeric tokens.
	FormatNumeric Format = "numeric"
	// FormatLuhn produces numeric tokens that pass Luhn validation, matching
	// the shape of payment card numbers.
	FormatLuhn Format = "luhn"
	// FormatAlphanumeric produces random [A-Za-z0-9] tokens.
	FormatAlphanumeric Format = "alphanumeric"
)

// Policy is a named server-side protection configuration. In the real service
// a policy also selects an algorithm, key, and access rules; the stub only
// models the token shape.
type Policy struct {
	// Name identifies the policy in protect/reveal requests.
	Name string
	// Format is the token shape the policy produces.
	Format Format
	// TokenLength is the generated token length. Zero means "same length as
	// the input", which preserves the format of card-shaped data. Ignored for
	// passthrough and uuid formats.
	TokenLength int
	// PreserveLastFour keeps the last four characters of the input at the end
	// of the token, the way card tokenization keeps the printable tail.
	// Honored for numeric and luhn formats only.
	PreserveLastFour bool
}

// Validate checks the policy definition.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidPolicy)
	}

	switch p.Format {
	case FormatPassthrough, FormatUUID, FormatNumeric, FormatLuhn, FormatAlphanumeric:
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidPolicy, string(p.Format))
	}

	if p.TokenLength < 0 || p.TokenLength > 255 {
		return fmt.Errorf("%w: token length must be between 0 and 255", ErrInvalidPolicy)
	}

	return nil
}

// ParseFormat converts a string to a Format.
// Returns an error if the format is not supported.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "passthrough":
		return FormatPassthrough, nil
	case "uuid":
		return FormatUUID, nil
	case "numeric":
		return FormatNumeric, nil
	case "luhn":
		return FormatLuhn, nil
	case "alphanumeric":
		return FormatAlphanumeric, nil
	default:
		return "", fmt.Errorf(
			"invalid format: %s (valid options: passthrough, uuid, numeric, luhn, alphanumeric)",
			s,
		)
	}
}

// DefaultPolicies returns the policies the stub serves out of the box.
func DefaultPolicies() []Policy {
	return []Policy{
		{Name: "protect-credit-card", Format: FormatLuhn, PreserveLastFour: true},
		{Name: "protect-account-number", Format: FormatNumeric},
		{Name: "protect-string", Format: FormatAlphanumeric},
		{Name: "protect-uuid", Format: FormatUUID},
		{Name: "passthrough", Format: FormatPassthrough},
	}
}
