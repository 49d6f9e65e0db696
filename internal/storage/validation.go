package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a storage call received malformed arguments.
var ErrInvalidInput = errors.New("invalid input")

// validateContext ensures a context is usable.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: nil context", ErrInvalidInput)
	}
	return ctx.Err()
}

// validateString ensures a required string argument is non-empty.
func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	return nil
}
