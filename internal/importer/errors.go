package importer

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the import service.
var (
	// ErrTooManyImports is returned when all import slots are busy and the
	// wait timeout expires. Clients should retry after a short delay.
	ErrTooManyImports = errors.New("too many imports in progress, please try again later")

	// ErrRunNotFound is returned for unknown or evicted run ids.
	ErrRunNotFound = errors.New("import run not found")

	// ErrRunInProgress is returned when a finished run is required.
	ErrRunInProgress = errors.New("import run still in progress")

	// ErrInvalidTransition is returned when a run step is called out of order.
	ErrInvalidTransition = errors.New("invalid import run transition")

	// ErrFileTooLarge is returned when the input exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ParseError means the whole input is unusable. Nothing is committed.
type ParseError struct {
	Reason string
	Line   int // 0 when not tied to a line
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv: line %d: %s", e.Line, e.Reason)
	}
	return "invalid csv: " + e.Reason
}

// RowValidationError is a fatal, row-scoped problem. The row is rejected.
type RowValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e RowValidationError) Error() string { return e.Message }

// RowValidationWarning is a non-fatal, row-scoped problem. The row is
// corrected and still committed.
type RowValidationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w RowValidationWarning) String() string { return w.Message }

// BatchCommitError records a batch whose bulk create failed as a whole.
type BatchCommitError struct {
	Batch int // 1-based
	Size  int
	Err   error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("batch %d (%d records) failed: %v", e.Batch, e.Size, e.Err)
}

func (e *BatchCommitError) Unwrap() error { return e.Err }
