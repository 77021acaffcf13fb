package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks user-facing input problems.
	ErrValidation = errors.New("validation error")
	// ErrHasDependents blocks deletes that would orphan rows.
	ErrHasDependents = errors.New("record has dependent rows")
	// ErrScheduleConflict reports an overlapping classroom or teacher slot.
	ErrScheduleConflict = errors.New("schedule conflict")
	// ErrDuplicate reports a uniqueness clash detected before hitting the database.
	ErrDuplicate = errors.New("duplicate record")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func dependentsf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrHasDependents, fmt.Sprintf(format, args...))
}
