package services

import (
	"errors"
	"fmt"
)

// Fatal stage failures. Per-item problems never surface as errors; they are
// counted in the stage report instead.
var (
	ErrStorage       = errors.New("storage failure")
	ErrConfiguration = errors.New("configuration failure")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
