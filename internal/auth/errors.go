package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is matched by every rejection from the platform.
	ErrAuth = errors.New("auth rejected")
	// ErrNetwork is matched by every transport or server failure.
	ErrNetwork = errors.New("platform unreachable")
)

// Error is a request the platform understood and refused.
type Error struct {
	Op      string
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected (code %d)", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is reports ErrAuth.
func (e *Error) Is(target error) bool { return target == ErrAuth }

// NetworkError is a failed round trip. Status is zero when no response
// arrived.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: platform returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is reports ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }

// Message is the text shown to the user for err.
func Message(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	if errors.Is(err, ErrNetwork) {
		return "network error, please try again"
	}
	return "request failed"
}
