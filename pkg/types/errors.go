package types

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the engine. Wrap them with fmt.Errorf("%w") and
// classify with errors.Is.
var (
	// ErrValidation marks bad or missing input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing entry or relation
	ErrNotFound = errors.New("not found")
	// ErrTokenizer marks a runtime tokenizer failure
	ErrTokenizer = errors.New("tokenizer error")
	// ErrBackend marks a store failure
	ErrBackend = errors.New("backend error")
)

// Validationf returns an ErrValidation with a formatted message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
