package protection

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	validation "github.com/jellydator/validation"
)

// Default configuration values applied by withDefaults.
const (
	DefaultConnectTimeout      = 5 * time.Second
	DefaultRequestTimeout      = 10 * time.Second
	DefaultRetryCount          = 3
	DefaultBackoffBase         = 100 * time.Millisecond
	DefaultBackoffCap          = 2 * time.Second
	DefaultRevealResponseField = "data"
)

// Config holds the connection parameters for a Client. It is copied at
// construction and immutable for the client's lifetime.
type Config struct {
	// BaseURL is the target service address, e.g. "https://protect.example.com".
	// The client appends "/v1/protect" and "/v1/reveal" to it.
	BaseURL string

	// ConnectTimeout is the maximum wait to establish a connection.
	ConnectTimeout time.Duration

	// RequestTimeout is the maximum wait per attempt for a response. Each
	// retry attempt gets the full timeout, so a call may take up to
	// (1+RetryCount) x RequestTimeout plus backoff delays in the worst case.
	// Callers needing a hard deadline should use context cancellation.
	RequestTimeout time.Duration

	// RetryCount is the number of retries after the initial attempt for
	// transient transport failures. Zero means DefaultRetryCount; a negative
	// value disables retries.
	RetryCount int

	// BackoffBase is the delay before the first retry; each subsequent delay
	// doubles until it reaches BackoffCap.
	BackoffBase time.Duration

	// BackoffCap is the maximum delay between retries.
	BackoffCap time.Duration

	// RevealResponseField is the JSON field holding the plaintext in a reveal
	// response. Vendors disagree on its name, so it is configurable; the
	// default is "data". The protect response field is always "protected_data".
	RevealResponseField string

	// RateLimitRequestsPerSec enables client-side rate limiting when > 0.
	// Calls block until the limiter admits them or the context is cancelled.
	RateLimitRequestsPerSec float64

	// RateLimitBurst is the burst size for the client-side rate limiter.
	// Only used when RateLimitRequestsPerSec > 0; defaults to 1.
	RateLimitBurst int

	// HTTPClient lets the caller own the underlying HTTP client and its
	// connection pool. When nil, the client builds one from ConnectTimeout.
	HTTPClient *http.Client

	// Logger receives redacted diagnostics. Payloads are never logged; when
	// nil, logging is discarded.
	Logger *slog.Logger
}

// withDefaults returns a copy of the config with zero values replaced by
// defaults.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RetryCount == 0 {
		c.RetryCount = DefaultRetryCount
	} else if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.RevealResponseField == "" {
		c.RevealResponseField = DefaultRevealResponseField
	}
	if c.RateLimitRequestsPerSec > 0 && c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Validate checks if the config is valid. Called by NewClient after defaults
// are applied.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL,
			validation.Required,
			validation.By(validateBaseURL),
		),
		validation.Field(&c.BackoffCap,
			validation.By(validateBackoffBounds(c.BackoffBase)),
		),
	)
}

// validateBaseURL checks that the base URL is absolute with an http or https
// scheme.
func validateBaseURL(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base_url_type", "must be a string")
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return validation.NewError(
			"validation_base_url",
			"must be an absolute http or https URL",
		)
	}
	return nil
}

// validateBackoffBounds checks that the backoff cap is not below the base.
func validateBackoffBounds(base time.Duration) validation.RuleFunc {
	return func(value interface{}) error {
		maxDelay, ok := value.(time.Duration)
		if !ok {
			return validation.NewError("validation_backoff_cap_type", "must be a duration")
		}
		if maxDelay < base {
			return validation.NewError(
				"validation_backoff_bounds",
				"backoff cap must not be below backoff base",
			)
		}
		return nil
	}
}
