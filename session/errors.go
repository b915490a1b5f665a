package session

import (
	"errors"
)

var ErrNotInitialized = errors.New("session not initialized")

// AuthenticationError is returned when the WAF credential can't be
// acquired, or when the session is used before being initialized.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Failed to acquire WAF token"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
