package documents

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("file not found")
	ErrForbidden = errors.New("access denied")
	ErrTooLarge  = errors.New("file too large")
)

// Kind classifies a task failure for the transport layer
type Kind int

const (
	// KindInvalid is a client error: bad input that retrying will not fix
	KindInvalid Kind = iota + 1
	// KindInternal is a capability or infrastructure failure
	KindInternal
)

// Error is a task-level failure carrying a short human-readable message
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(message, details string, err error) *Error {
	return &Error{Kind: KindInvalid, Message: message, Details: details, Err: err}
}

func internal(message string, err error) *Error {
	e := &Error{Kind: KindInternal, Message: message, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// IsInvalid reports whether err is a client error
func IsInvalid(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindInvalid
}
