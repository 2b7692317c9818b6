package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is matched by every MissingColumnError.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidHorizon rejects forward horizons that are not positive multiples of 3 months.
	ErrInvalidHorizon = errors.New("invalid forward horizon")

	// ErrColumnExists is returned when a derived column would overwrite another.
	ErrColumnExists = errors.New("column already exists")

	// ErrColumnCollision rejects configurations where a derived column shares
	// its name with an input or another derived column.
	ErrColumnCollision = errors.New("column name collision")
)

// MissingColumnError reports a derived column whose input is absent.
type MissingColumnError struct {
	Column    string
	Operation string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing column %q", e.Operation, e.Column)
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }
