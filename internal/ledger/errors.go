package ledger

import (
	"errors"
	"fmt"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/storage"
)

// Sentinel errors for ledger failures. Callers match them with errors.Is.
var (
	ErrValidation       = errors.New("ledger: validation failed")
	ErrNotFound         = errors.New("ledger: not found")
	ErrConflict         = errors.New("ledger: conflict")
	ErrPermissionDenied = errors.New("ledger: permission denied")
)

// ValidationError describes bad input. Message is shown to users as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// splitInvalid turns a calculator error into a ValidationError on field.
func splitInvalid(field string, err error) error {
	var se *calculator.SplitError
	if errors.As(err, &se) {
		if errors.Is(se.Kind, calculator.ErrInvalidAmount) {
			field = "amount"
		}
		return &ValidationError{Field: field, Message: se.Message}
	}
	return invalid(field, "%v", err)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func denied(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPermissionDenied)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// fromStore maps storage sentinels onto ledger sentinels and wraps
// everything else with context.
func fromStore(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrRevisionConflict), errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// outcome labels err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	default:
		return "error"
	}
}
