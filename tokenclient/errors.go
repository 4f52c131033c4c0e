package tokenclient

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshFailed is returned when the refresh grant is rejected. The
	// manager falls back to a password grant when it sees it.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrAuthenticationFailed is terminal: both the refresh grant and the
	// password grant failed and cached tokens were cleared. Do not retry
	// without new credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoAccessToken is returned when a grant response lacks an access token.
	ErrNoAccessToken = errors.New("no access_token in response")
)

// Grant types sent to the authenticate endpoint.
const (
	GrantRefreshToken = "refresh_token"
	GrantPassword     = "password"
)

// GrantError is a non-2xx response from the authenticate endpoint.
type GrantError struct {
	Grant      string
	StatusCode int
	Body       string
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("%s grant failed: status %d, body: %s", e.Grant, e.StatusCode, e.Body)
}

// IsAuthenticationFailed reports whether err is the terminal failure.
func IsAuthenticationFailed(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}
