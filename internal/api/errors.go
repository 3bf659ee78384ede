package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by Login when the backend rejects
	// the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when an authenticated call gets a 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned on a 404. An empty result list is not an
	// error and never maps here.
	ErrNotFound = errors.New("not found")
)

// APIError carries a non-2xx status and the server-provided message, falling
// back to a generic one when the body had none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// Unwrap lets errors.Is match the status-class sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 404:
		return ErrNotFound
	}
	return nil
}
