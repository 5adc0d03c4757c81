package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrNoData       = errors.New("no usable input data")
	ErrNoInputFiles = fmt.Errorf("%w: no input files", ErrNoData)
	ErrEmptyFiles   = fmt.Errorf("%w: input files contained no rows", ErrNoData)

	// Imputation errors
	ErrInsufficientHistory = errors.New("insufficient history for imputation")

	// Model errors
	ErrModelNotFound = errors.New("persisted model not found")

	// Validation errors
	ErrBadFrequency  = errors.New("frequency must evenly divide one hour")
	ErrBadDateRange  = errors.New("end date must be after start date")
	ErrNoPersistence = errors.New("no data persistence was requested")

	// Invariant violations - implementation defects, never coerced
	ErrGridMismatch = errors.New("timestamp outside expected grid")
	ErrRowMismatch  = errors.New("tumbled row length mismatch")
)

// NewWeekdayHistoryError reports a weekday that has zero usable samples
// anywhere in the dataset, so its slots cannot be imputed.
func NewWeekdayHistoryError(weekday string) error {
	return fmt.Errorf(
		"%w: not enough data to impute %ss; either no %ss were provided or the data quality of every %s is too low",
		ErrInsufficientHistory, weekday, weekday, weekday,
	)
}

// NewNoInputFilesError reports a sensor directory with no matching files.
func NewNoInputFilesError(dir string) error {
	return fmt.Errorf("%w in directory %s", ErrNoInputFiles, dir)
}

// IsDataError reports whether err is fatal for a single sensor's run.
func IsDataError(err error) bool {
	return errors.Is(err, ErrNoData) || errors.Is(err, ErrInsufficientHistory)
}

// IsInvariantError reports whether err indicates an implementation defect.
func IsInvariantError(err error) bool {
	return errors.Is(err, ErrGridMismatch) || errors.Is(err, ErrRowMismatch)
}
