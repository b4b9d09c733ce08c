package generation

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// ErrorKind classifies a generation failure. Callers branch on the kind,
// never on provider-specific status codes or message text.
type ErrorKind string

const (
	// KindRateLimited means the provider rejected the call with HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"

	// KindNetwork covers transport failures, timeouts, and provider-side
	// 5xx responses.
	KindNetwork ErrorKind = "network_failure"

	// KindMalformed means the provider answered but the body could not be
	// used: unparseable JSON, no candidates, or an empty completion.
	KindMalformed ErrorKind = "malformed_response"

	// KindUnauthorized means the API key was rejected (HTTP 401 or 403).
	KindUnauthorized ErrorKind = "unauthorized"
)

// Error is the typed failure returned by every generation client.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int // 0 when the failure happened before an HTTP status arrived
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation: %s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation: %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a generation Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var genErr *Error
	return errors.As(err, &genErr) && genErr.Kind == kind
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool { return IsKind(err, KindRateLimited) }

// IsUnauthorized reports whether err is a credential rejection.
func IsUnauthorized(err error) bool { return IsKind(err, KindUnauthorized) }

// networkError wraps a transport-level failure (dial, TLS, timeout).
func networkError(provider string, err error) *Error {
	return &Error{Kind: KindNetwork, Provider: provider, Err: err}
}

// malformedError wraps an unusable response body.
func malformedError(provider string, err error) *Error {
	return &Error{Kind: KindMalformed, Provider: provider, Err: err}
}

// statusError classifies a non-2xx HTTP status. 429 is a rate limit and
// 401/403 a credential problem; everything else counts as a provider-side
// network failure.
func statusError(provider string, status int, body []byte) *Error {
	kind := KindNetwork
	switch status {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	}
	return &Error{
		Kind:       kind,
		Provider:   provider,
		StatusCode: status,
		Err:        fmt.Errorf("%s", snippet(body)),
	}
}

// snippet trims a response body for error messages and logs.
func snippet(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
