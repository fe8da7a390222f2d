package core

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Errors produced by the constructors below carry one of these
// marks, so errors.Is(err, ErrInvalidInput) holds through any wrapping.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrInvariantViolation     = errors.New("internal invariant violation")
	ErrNotFound               = errors.New("not found")
)

var (
	ErrInvalidAmount    = InvalidInputf("invalid amount")
	ErrEmptyDescription = InvalidInputf("empty description")
)

// InvalidInputf builds an error of kind ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidInput)
}

// InvariantViolationf builds an error of kind ErrInvariantViolation.
func InvariantViolationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvariantViolation)
}

// NotFoundf builds an error of kind ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// PersistenceError wraps a storage failure as ErrPersistenceUnavailable.
// Not-found errors keep their own kind.
func PersistenceError(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return errors.Wrap(err, op)
	}
	return errors.Mark(errors.Wrap(err, op), ErrPersistenceUnavailable)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsPersistenceUnavailable(err error) bool {
	return errors.Is(err, ErrPersistenceUnavailable)
}

func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
