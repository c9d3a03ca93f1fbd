package protection

import (
	"errors"
	"fmt"
)

// Kind classifies a client failure so callers can distinguish "try again"
// from "fix your request" from "the service's contract changed".
type Kind string

// Failure kinds returned by the client.
const (
	// KindUnavailable indicates a transient transport failure (connection
	// refused, timeout, DNS failure). This is the only retryable kind.
	KindUnavailable Kind = "unavailable"

	// KindAPIError indicates the remote service rejected the request with a
	// non-2xx status. Never retried: the outcome would not change.
	KindAPIError Kind = "api_error"

	// KindMalformedResponse indicates a 2xx response that could not be parsed
	// or was missing the expected field. Never retried: it signals a protocol
	// mismatch between client and service.
	KindMalformedResponse Kind = "malformed_response"

	// KindCancelled indicates the caller's context was cancelled or its
	// deadline expired before the call completed.
	KindCancelled Kind = "cancelled"

	// KindInvalidInput indicates the request failed client-side validation
	// before any network I/O was attempted.
	KindInvalidInput Kind = "invalid_input"
)

// Error is the failure type returned by all client operations.
//
// Body holds the raw response body when one was received. For KindAPIError it
// is surfaced verbatim through Error(); for KindMalformedResponse it is kept
// on the struct but excluded from the message, since a malformed reveal
// response may contain plaintext.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Op is the operation that failed ("protect" or "reveal").
	Op string
	// Status is the HTTP status code when a response was received.
	Status int
	// Body is the raw response body when a response was received.
	Body string
	// Reason is a short human-readable description of the failure.
	Reason string

	cause error
}

// Error implements the error interface. Request payloads never appear here,
// in any form.
func (e *Error) Error() string {
	switch e.Kind {
	case KindAPIError:
		return fmt.Sprintf("%s: api error: status=%d body=%s", e.Op, e.Status, e.Body)
	case KindMalformedResponse:
		return fmt.Sprintf("%s: malformed response: status=%d: %s", e.Op, e.Status, e.Reason)
	case KindUnavailable:
		if e.cause != nil {
			return fmt.Sprintf("%s: service unavailable: %v", e.Op, e.cause)
		}
		return fmt.Sprintf("%s: service unavailable", e.Op)
	case KindCancelled:
		if e.cause != nil {
			return fmt.Sprintf("%s: cancelled: %v", e.Op, e.cause)
		}
		return fmt.Sprintf("%s: cancelled", e.Op)
	case KindInvalidInput:
		return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
}

// Unwrap returns the underlying cause, allowing errors.Is checks against
// transport errors and context.Canceled / context.DeadlineExceeded.
func (e *Error) Unwrap() error {
	return e.cause
}

// IsUnavailable reports whether err is a transient transport failure.
func IsUnavailable(err error) bool {
	return hasKind(err, KindUnavailable)
}

// IsAPIError reports whether err is a remote rejection with a status code.
func IsAPIError(err error) bool {
	return hasKind(err, KindAPIError)
}

// IsMalformedResponse reports whether err indicates an unparsable 2xx response.
func IsMalformedResponse(err error) bool {
	return hasKind(err, KindMalformedResponse)
}

// IsCancelled reports whether err was caused by caller-initiated cancellation.
func IsCancelled(err error) bool {
	return hasKind(err, KindCancelled)
}

// IsInvalidInput reports whether err is a client-side validation failure.
func IsInvalidInput(err error) bool {
	return hasKind(err, KindInvalidInput)
}

// AsError extracts the typed *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func hasKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
