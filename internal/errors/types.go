// Package errors classifies provider and identity failures so retry
// policies can tell transient faults from hard rejections.
package errors

import "fmt"

// Category determines how an error should be handled by retry logic.
type Category int

const (
	// Recoverable errors may succeed on retry with backoff.
	// Examples: 5xx responses, timeouts, connection resets.
	Recoverable Category = iota

	// Irrecoverable errors fail immediately without retry.
	// Examples: 400, 401, 403 responses, missing credentials.
	Irrecoverable
)

func (c Category) String() string {
	switch c {
	case Recoverable:
		return "recoverable"
	case Irrecoverable:
		return "irrecoverable"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ClassifiedError wraps an error with retry metadata. StatusCode is 0 for
// non-HTTP failures. Body carries the response body for diagnostics and is
// truncated by the caller, never here.
type ClassifiedError struct {
	Category   Category
	StatusCode int
	Body       string
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// IsIrrecoverable reports whether err should not be retried.
func IsIrrecoverable(err error) bool {
	if classified, ok := err.(*ClassifiedError); ok {
		return classified.Category == Irrecoverable
	}
	return false
}
