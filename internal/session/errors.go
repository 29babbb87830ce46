package session

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyNickname = errors.New("nickname must not be empty")
	ErrEmptyMessage  = errors.New("message must not be empty")
	ErrClosed        = errors.New("session is closed")
	ErrRemoteClosed  = errors.New("connection closed by server")
)

// ValidationError rejects caller input. The session is left untouched.
type ValidationError struct {
	Field string // "nickname" or "message"
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StateError reports an operation invoked in a state that does not allow it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

// Unwrap lets errors.Is(err, ErrClosed) match operations on a closed session.
func (e *StateError) Unwrap() error {
	if e.State == StateClosed {
		return ErrClosed
	}
	return nil
}

// ConnectionError reports a transport failure that ended the session.
type ConnectionError struct {
	Op     string // "dial", "read", "write"
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
