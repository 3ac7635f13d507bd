package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrSourceNotFound is returned when a local source is missing or a remote
	// source answers 404.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceTooLarge is returned when a download exceeds the configured limit.
	ErrSourceTooLarge = errors.New("source exceeds size limit")

	// ErrUnsupportedFormat is returned when no encoder exists for the source extension.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// AcquisitionError reports that the source bytes could not be obtained.
type AcquisitionError struct {
	Source string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquisition of %s failed: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("acquisition of %s failed: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// ProcessingError reports that a variant could not be produced from acquired bytes.
type ProcessingError struct {
	Resolution int
	Err        error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing for resolution %d failed: %v", e.Resolution, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsAcquisitionError reports whether err is or wraps an AcquisitionError.
func IsAcquisitionError(err error) bool {
	var target *AcquisitionError
	return errors.As(err, &target)
}

// IsProcessingError reports whether err is or wraps a ProcessingError.
func IsProcessingError(err error) bool {
	var target *ProcessingError
	return errors.As(err, &target)
}
