package domain

import (
	"errors"
	"fmt"
)

var (
	ErrShiftAlreadyOpen = errors.New("shift already open")
	ErrNoActiveShift    = errors.New("no active shift")
	ErrShiftNotClosed   = errors.New("shift is still open")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidInput     = errors.New("invalid input")
	ErrExpenseTypeInUse = errors.New("expense type is referenced by recorded expenses")
)

// InputError names the closing or opening field that could not be used.
type InputError struct {
	Field string
	Err   error
}

func NewInputError(field string, err error) error {
	return &InputError{Field: field, Err: err}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Field, ErrInvalidInput, e.Err)
}

func (e *InputError) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}
