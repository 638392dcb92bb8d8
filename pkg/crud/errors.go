package crud

import (
	"errors"
	"fmt"
)

// Kind classifies errors the caller can act on.
type Kind int

const (
	// KindInvalidInput means the request cannot be carried out as written.
	KindInvalidInput Kind = iota + 1
	// KindNotFound means the table or addressed row does not exist.
	KindNotFound
	// KindUnresolvableIdentity means the table has no usable identity column.
	KindUnresolvableIdentity
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrUnresolvableIdentity = errors.New("unresolvable identity")
)

// Error is returned for failures that are the caller's to fix. Any other error returned by
// the Engine comes from the store.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInvalidInput:
		return target == ErrInvalidInput
	case KindNotFound:
		return target == ErrNotFound
	case KindUnresolvableIdentity:
		return target == ErrUnresolvableIdentity
	}
	return false
}

func invalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func unresolvableIdentity(table string, err error) error {
	return &Error{
		Kind:    KindUnresolvableIdentity,
		Message: fmt.Sprintf("cannot address rows of table %q", table),
		Err:     err,
	}
}
