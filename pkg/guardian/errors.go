package guardian

import (
	"errors"
	"fmt"
)

// Vendor cloud errors.
var (
	// ErrUnauthorized reports a request the cloud refused over
	// credentials: the access token is missing, expired upstream, or
	// revoked.
	ErrUnauthorized = errors.New("cloud rejected credentials")

	// ErrPanelNotFound reports a panel the account does not own, or a
	// registration too incomplete to connect to.
	ErrPanelNotFound = errors.New("panel not found")

	// ErrLoginRejected reports credentials the identity server refused.
	ErrLoginRejected = errors.New("login rejected")

	// ErrSessionExpired reports a gateway session whose token is gone
	// or past expiry with no working refresh token.
	ErrSessionExpired = errors.New("session not found or expired")
)

// APIError reports a cloud response outside 2xx that maps to no
// sentinel above. Body carries the leading bytes of the reply for
// diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("cloud API status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("cloud API status %d", e.Status)
}
