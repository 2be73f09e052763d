package types

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is.
var (
	// ErrParseFailure means the chunker could not structurally analyze input.
	// It is recovered inside the chunker and recorded in metadata.
	ErrParseFailure = errors.New("parse failure")
	// ErrProviderFailure means the embedding provider failed or was unreachable
	ErrProviderFailure = errors.New("embedding provider failure")
	// ErrStoreFailure means a persistence or query operation failed
	ErrStoreFailure = errors.New("store failure")
	// ErrNotFound means a referenced file or chunk does not exist
	ErrNotFound = errors.New("not found")
)

// Validation errors
var (
	ErrInvalidChunk = errors.New("invalid chunk")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrEmptyQuery   = errors.New("query cannot be empty")
	ErrExcluded     = errors.New("path excluded from indexing")
)

// OpError records the operation and path that failed together with the
// failure kind. It unwraps to both Kind and Err.
type OpError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Kind != nil {
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// StoreError wraps err as a store failure for op on path
func StoreError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Path: path, Kind: ErrStoreFailure, Err: err}
}

// ProviderError wraps err as an embedding provider failure
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: ErrProviderFailure, Err: err}
}
