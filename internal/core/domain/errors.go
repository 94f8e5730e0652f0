package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	// Stores return it when a unique constraint rejects an insert.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown storage driver.
	ErrUnsupportedType = errors.New("unsupported type")

	// Ingestion Errors.

	// ErrConfig indicates invalid or missing configuration.
	// Fatal at startup, before any I/O.
	ErrConfig = errors.New("configuration error")

	// ErrUnknownDataset indicates the dataset name is not in the registry.
	ErrUnknownDataset = fmt.Errorf("%w: unsupported dataset", ErrConfig)

	// ErrFetch indicates the dataset could not be downloaded or extracted.
	ErrFetch = errors.New("fetch dataset failed")

	// ErrParse indicates a single row could not be turned into a Patient.
	ErrParse = errors.New("parse row failed")

	// ErrBatchFailed indicates an entire batch task failed.
	ErrBatchFailed = errors.New("batch failed")

	// ErrNoValidRecords indicates parsing produced nothing to persist.
	ErrNoValidRecords = errors.New("no valid records")
)

// ParseError describes why a row was rejected.
type ParseError struct {
	// RowID is the row's Id column, or "unknown" if unavailable.
	RowID string

	// Column is the column being parsed when the failure happened.
	Column string

	Err error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %s: %v", e.RowID, e.Err)
	}
	return fmt.Sprintf("row %s: column %s: %v", e.RowID, e.Column, e.Err)
}

// Unwrap exposes both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
