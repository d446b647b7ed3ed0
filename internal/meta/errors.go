package meta

import (
	"errors"
	"fmt"
)

// apiError is the Graph API error envelope.
type apiError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
}

const oauthErrorCode = 190

// AuthError marks an authentication failure (expired or invalidated token).
// Callers get exactly one refresh-and-retry attempt before giving up.
type AuthError struct {
	Message string
	Code    int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("meta auth failure (code %d): %s", e.Code, e.Message)
}

// IsAuthExpired reports whether err is (or wraps) a token-expiry failure.
func IsAuthExpired(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// RequestError carries the HTTP/Graph context of a failed listing call.
type RequestError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("meta request %s failed (status %d): %s", e.Path, e.StatusCode, e.Message)
}
