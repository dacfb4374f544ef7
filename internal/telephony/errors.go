package telephony

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy. The poller's retry policy is driven entirely by these
// predicates, so classification must stay narrow and explicit:
//
// - Cancellation is not a failure. It is never retried or surfaced.
// - Timeouts and connectivity errors are transient and count toward the
//   retry budget.
// - Authentication errors are fatal for the session; no retry.
// - NoActiveChannelError is a semantic command failure; no automatic retry,
//   always surfaced to the operator.

var (
	// ErrTimeout marks a request that exceeded the client's request ceiling.
	// Transient, but logged distinctly from plain connectivity failures.
	ErrTimeout = errors.New("telephony: request timed out")

	// ErrUnauthorized marks a 401/403 from the provider.
	ErrUnauthorized = errors.New("telephony: unauthorized")
)

// NoActiveChannelError reports a command against a channel the provider no
// longer knows. The extension travels with the error so operator-facing
// messages can name it.
type NoActiveChannelError struct {
	Extension string
}

func (e *NoActiveChannelError) Error() string {
	return fmt.Sprintf("telephony: no active channel found for extension %s", e.Extension)
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsAuth reports whether err is an authentication/authorization failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNoActiveChannel reports whether err is the provider's "no active channel"
// semantic failure, returning the named extension when it is.
func IsNoActiveChannel(err error) (string, bool) {
	var nae *NoActiveChannelError
	if errors.As(err, &nae) {
		return nae.Extension, true
	}
	return "", false
}

// IsTransient reports whether err should count toward a retry budget.
// Cancellation, auth failures and semantic command failures are not transient.
func IsTransient(err error) bool {
	if err == nil || IsCanceled(err) || IsAuth(err) {
		return false
	}
	if _, ok := IsNoActiveChannel(err); ok {
		return false
	}
	return true
}
