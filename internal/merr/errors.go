// Package merr defines the sentinel error kinds shared across memoryd's
// components, following the teacher's flat sentinel-error convention
// rather than a typed exception hierarchy.
package merr

import "errors"

var (
	// ErrInvalidInput marks malformed or missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransientBackend marks a network, 5xx, or timeout failure from
	// an external dependency. Callers that define a retry policy retry
	// on this kind; others surface it.
	ErrTransientBackend = errors.New("transient backend error")

	// ErrPermanentBackend marks a 4xx failure from an external
	// dependency (auth, quota, schema). Never retried.
	ErrPermanentBackend = errors.New("permanent backend error")

	// ErrStructuredGeneration marks a structured-output payload that
	// did not parse after the sanitize-and-retry pass.
	ErrStructuredGeneration = errors.New("structured generation error")

	// ErrNotFound marks a queried memory with no hydrated row. Treated
	// as a drop, not a failure, during retrieval merges.
	ErrNotFound = errors.New("not found")
)

// Kind maps an error to the HTTP-status-equivalent string a caller at the
// API boundary should report, defaulting to "internal" for anything not
// wrapping one of the sentinels above.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTransientBackend):
		return "transient_backend_error"
	case errors.Is(err, ErrPermanentBackend):
		return "permanent_backend_error"
	case errors.Is(err, ErrStructuredGeneration):
		return "structured_generation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// StatusCode maps an error to the HTTP status code the front door should
// return for it.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrPermanentBackend):
		return 502
	case errors.Is(err, ErrTransientBackend):
		return 503
	case errors.Is(err, ErrStructuredGeneration):
		return 422
	default:
		return 500
	}
}
