package protection

import (
	"fmt"
)

// Redact returns a placeholder safe to put in logs and error messages in
// place of a sensitive value. Only the length survives; the value itself is
// never echoed in diagnostics, even on failure.
func Redact(value string) string {
	return fmt.Sprintf("redacted(len=%d)", len(value))
}
