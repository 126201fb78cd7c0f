package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrTaskNotFound indicates the extraction task does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoFieldsUpdated indicates a partial update modified zero fields
	ErrNoFieldsUpdated = errors.New("no fields were updated")

	// ErrDeleteFailed indicates the store deleted zero documents after a
	// successful existence check
	ErrDeleteFailed = errors.New("delete failed")

	// ErrExtractionFailed indicates the content extractor could not produce
	// a structured paper
	ErrExtractionFailed = errors.New("extraction failed")
)
