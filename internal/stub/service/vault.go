package service

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/allisson/protect/internal/errors"
	"github.com/allisson/protect/internal/stub/domain"
)

// maxTokenAttempts bounds the regeneration loop on token collisions.
const maxTokenAttempts = 5

// defaultTokenLength is used when a policy has no fixed length and the input
// is too short to borrow a length from.
const defaultTokenLength = 16

// Vault is the stub's in-memory protect/reveal engine. Protect generates a
// token per the policy format and records the token→plaintext mapping so
// Reveal can round-trip. Safe for concurrent use. Nothing is persisted:
// restarting the stub forgets every protected value.
type Vault struct {
	mu       sync.RWMutex
	policies map[string]domain.Policy
	tokens   map[string]string // token → plaintext, keyed per policy name
}

// NewVault creates a vault serving the given policies. Invalid policies are
// rejected.
func NewVault(policies []domain.Policy) (*Vault, error) {
	byName := make(map[string]domain.Policy, len(policies))
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byName[p.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate name %q", domain.ErrInvalidPolicy, p.Name)
		}
		byName[p.Name] = p
	}

	return &Vault{
		policies: byName,
		tokens:   make(map[string]string),
	}, nil
}

// Protect transforms data into a token under the named policy.
func (v *Vault) Protect(ctx context.Context, policyName, data string) (string, error) {
	policy, err := v.policy(policyName)
	if err != nil {
		return "", err
	}

	if policy.Format == domain.FormatPassthrough {
		return data, nil
	}

	generator, err := NewTokenGenerator(policy.Format)
	if err != nil {
		return "", err
	}

	length := policy.TokenLength
	if length == 0 {
		length = len(data)
	}
	// Very short inputs (including empty payloads, which are legal) cannot
	// dictate the token length.
	if length < 2 {
		length = defaultTokenLength
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := v.generate(policy, generator, length, data)
		if err != nil {
			// Length bounds are derived from the input, so generation
			// failures are the caller's problem, not the stub's.
			return "", apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
		}

		key := tokenKey(policyName, token)
		if _, exists := v.tokens[key]; exists {
			continue
		}
		v.tokens[key] = data
		return token, nil
	}

	return "", apperrors.New("token space exhausted for policy")
}

// Reveal recovers the plaintext for a previously protected value under the
// named policy.
func (v *Vault) Reveal(ctx context.Context, policyName, token string) (string, error) {
	policy, err := v.policy(policyName)
	if err != nil {
		return "", err
	}

	if policy.Format == domain.FormatPassthrough {
		return token, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	data, ok := v.tokens[tokenKey(policyName, token)]
	if !ok {
		return "", domain.ErrTokenNotFound
	}
	return data, nil
}

// policy resolves a policy by name.
func (v *Vault) policy(name string) (domain.Policy, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	policy, ok := v.policies[name]
	if !ok {
		return domain.Policy{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownPolicy, name)
	}
	return policy, nil
}

// generate produces one candidate token for the policy, applying last-four
// preservation for card-shaped formats when the input is long enough.
func (v *Vault) generate(
	policy domain.Policy,
	generator TokenGenerator,
	length int,
	data string,
) (string, error) {
	// Preserving the suffix needs digits beyond it, otherwise the token
	// would embed the whole payload.
	if policy.PreserveLastFour && length > 4 && len(data) > 4 && isNumeric(data) {
		suffix := data[len(data)-4:]
		switch policy.Format {
		case domain.FormatLuhn:
			return generateLuhnWithSuffix(length, suffix)
		case domain.FormatNumeric:
			prefix, err := generator.Generate(length - 4)
			if err != nil {
				return "", err
			}
			return prefix + suffix, nil
		}
	}

	return generator.Generate(length)
}

// tokenKey namespaces stored tokens by policy so the same token under two
// policies cannot collide.
func tokenKey(policyName, token string) string {
	return policyName + "\x00" + token
}

// isNumeric reports whether s is non-empty and contains only digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
