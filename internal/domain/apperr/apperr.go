// Package apperr defines the error kinds shared by all domain packages.
//
// Domain packages declare their own sentinel errors on top of these kinds
// (see New) so the HTTP boundary can map any error to a status code with a
// single errors.Is check, while callers still match the precise sentinel.
package apperr

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Error kinds.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// kindError is a domain sentinel carrying a human-readable message and a
// kind it unwraps to.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel error with the given message that matches kind via
// errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports one or more invalid input fields.
type ValidationError struct {
	Fields []FieldError
}

// Validation is a shorthand for a single-field ValidationError.
func Validation(path, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Path: path, Message: message}}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	paths := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		paths = append(paths, f.Path)
	}
	return "Validation Error in: " + strings.Join(paths, ", ")
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateKeyError reports a unique constraint violation on Field.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// Is makes DuplicateKeyError match ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// Message returns the client-facing message of the outermost domain error in
// err's chain, without the annotations added by errors.Wrap. It returns ""
// when the chain holds no domain error.
func Message(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *kindError, *ValidationError, *DuplicateKeyError:
			return e.Error()
		}
	}
	return ""
}
