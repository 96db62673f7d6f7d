package challenge

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField    = errors.New("challenge: missing field")
	ErrInvalidFormat   = errors.New("challenge: field has invalid format")
	ErrConfirmDisabled = errors.New("challenge: confirm is disabled for the current token")
)

func NewError(verb, publicReason string, privateReason error) *Error {
	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
	}
}

// Error carries a reason that is safe to show in the dialog next to the
// detailed reason that only goes to the logs.
type Error struct {
	PrivateReason error
	Verb          string
	PublicReason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: error when processing challenge: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}
