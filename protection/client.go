// Package protection provides a client for a remote data-protection REST API
// exposing PROTECT and REVEAL operations. A plaintext value plus a named
// server-side policy becomes a token or ciphertext; reveal is the inverse for
// authorized callers. The client adds bounded retries with exponential backoff
// for transient transport failures, a typed error taxonomy, and mandatory
// payload redaction in diagnostics.
//
// The client is stateless beyond its immutable configuration and is safe for
// concurrent use. No ordering is guaranteed between concurrent calls.
package protection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Wire protocol paths and field names fixed by the external service.
const (
	protectPath        = "/v1/protect"
	revealPath         = "/v1/reveal"
	policyField        = "protection_policy_name"
	dataField          = "data"
	protectedDataField = "protected_data"
)

// Result holds the outcome of a successful protect or reveal call.
type Result struct {
	// Value is the protected value (protect) or recovered plaintext (reveal).
	Value string
}

// Protector is the behavior contract for protect/reveal clients. Decorators
// and callers should depend on this interface rather than the concrete Client.
type Protector interface {
	// Protect transforms plaintext into a token or ciphertext via the named
	// server-side policy.
	Protect(ctx context.Context, policyName, data string) (*Result, error)

	// Reveal inverts Protect, recovering the plaintext for a previously
	// protected value under the same policy.
	Reveal(ctx context.Context, policyName, protectedData string) (*Result, error)
}

// Client is a synchronous protect/reveal client. Construct it with NewClient;
// the zero value is not usable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// compile-time interface check
var _ Protector = (*Client)(nil)

// NewClient creates a client from the given configuration. The configuration
// is copied; later mutation by the caller has no effect. The underlying HTTP
// client and its connection pool are owned by the caller when
// Config.HTTPClient is set, otherwise one is built from ConnectTimeout.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidInput, Op: "new_client", Reason: err.Error()}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRequestsPerSec), cfg.RateLimitBurst)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
		limiter:    limiter,
	}, nil
}

// Protect sends plaintext to the remote service and returns the protected
// value produced by the named policy.
func (c *Client) Protect(ctx context.Context, policyName, data string) (*Result, error) {
	return c.call(ctx, "protect", protectPath, protectedDataField, policyName, data)
}

// Reveal sends a previously protected value to the remote service and returns
// the original plaintext. The response field name comes from
// Config.RevealResponseField.
func (c *Client) Reveal(ctx context.Context, policyName, protectedData string) (*Result, error) {
	return c.call(ctx, "reveal", revealPath, c.cfg.RevealResponseField, policyName, protectedData)
}

// call runs one protect/reveal operation: validate, rate-limit, then attempt
// the request with retries for transient transport failures.
func (c *Client) call(
	ctx context.Context,
	op, path, responseField, policyName, payload string,
) (*Result, error) {
	if policyName == "" {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Reason: "policy name cannot be empty"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait also fails without the context tripping, e.g. when the
			// request can never fit the configured burst.
			if ctx.Err() != nil {
				return nil, &Error{Kind: KindCancelled, Op: op, cause: err}
			}
			return nil, &Error{Kind: KindInvalidInput, Op: op, Reason: err.Error(), cause: err}
		}
	}

	body, err := json.Marshal(map[string]string{
		policyField: policyName,
		dataField:   payload,
	})
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Reason: "payload is not encodable", cause: err}
	}

	url := c.cfg.BaseURL + path

	var result *Result
	attempt := 0
	operation := func() error {
		attempt++
		res, err := c.attempt(ctx, op, url, responseField, body)
		if err != nil {
			c.logger.Debug("attempt failed",
				slog.String("operation", op),
				slog.String("policy_name", policyName),
				slog.String("payload", Redact(payload)),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			if IsUnavailable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(c.cfg), ctx)); err != nil {
		return nil, c.finalError(ctx, op, err)
	}

	return result, nil
}

// attempt issues a single HTTP request under the per-attempt timeout and maps
// the outcome to the error taxonomy.
func (c *Client) attempt(
	ctx context.Context,
	op, url, responseField string,
	body []byte,
) (*Result, error) {
	// A pre-tripped context must not issue network I/O.
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindCancelled, Op: op, cause: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Reason: "invalid request", cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller cancelling mid-flight is not a transport failure.
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Op: op, cause: ctx.Err()}
		}
		return nil, &Error{Kind: KindUnavailable, Op: op, cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Op: op, cause: ctx.Err()}
		}
		return nil, &Error{Kind: KindUnavailable, Op: op, cause: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Kind:   KindAPIError,
			Op:     op,
			Status: resp.StatusCode,
			Body:   string(raw),
		}
	}

	value, err := extractField(raw, responseField)
	if err != nil {
		return nil, &Error{
			Kind:   KindMalformedResponse,
			Op:     op,
			Status: resp.StatusCode,
			Body:   string(raw),
			Reason: err.Error(),
		}
	}

	return &Result{Value: value}, nil
}

// finalError normalizes the error coming out of the retry loop. The backoff
// package returns the context error when cancellation interrupts a wait
// between attempts.
func (c *Client) finalError(ctx context.Context, op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCancelled, Op: op, cause: ctx.Err()}
	}
	return &Error{Kind: KindUnavailable, Op: op, cause: err}
}

// extractField pulls a string field out of a JSON response body.
func extractField(raw []byte, field string) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("response is not a JSON object")
	}

	fieldValue, ok := payload[field]
	if !ok {
		return "", fmt.Errorf("response is missing field %q", field)
	}

	var value string
	if err := json.Unmarshal(fieldValue, &value); err != nil {
		return "", fmt.Errorf("response field %q is not a string", field)
	}

	return value, nil
}

// newBackOff builds the retry schedule: exponential growth from BackoffBase
// doubling up to BackoffCap, without jitter so delays are strictly increasing
// until capped, bounded at RetryCount retries.
func newBackOff(cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffBase
	b.MaxInterval = cfg.BackoffCap
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(cfg.RetryCount))
}
