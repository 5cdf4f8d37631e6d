// Package errors defines the repair pipeline's error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of pipeline failure.
type ErrorCode string

const (
	ErrScan               ErrorCode = "SCAN_ERROR"          // skip one reference
	ErrAnchorMissing      ErrorCode = "ANCHOR_MISSING"      // flag document, leave untouched
	ErrFetch              ErrorCode = "FETCH_ERROR"         // asset failed, run continues
	ErrWrite              ErrorCode = "WRITE_ERROR"         // document not written, run continues
	ErrAmbiguousStructure ErrorCode = "AMBIGUOUS_STRUCTURE" // patcher refused the document
	ErrCorpusUnreadable   ErrorCode = "CORPUS_UNREADABLE"   // aborts the run
	ErrInvalidConfig      ErrorCode = "INVALID_CONFIG"      // aborts the run
)

// RepairError is a structured error carrying the code and the path it concerns.
type RepairError struct {
	Code    ErrorCode
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RepairError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *RepairError) Unwrap() error {
	return e.Err
}

// NewScan creates an error for a malformed reference at byte offset.
func NewScan(offset int, msg string) *RepairError {
	return &RepairError{
		Code:    ErrScan,
		Message: fmt.Sprintf("offset %d: %s", offset, msg),
	}
}

// NewAnchorMissing creates an error for a document without the anchor a directive needs.
func NewAnchorMissing(path, directive, anchor string) *RepairError {
	return &RepairError{
		Code:    ErrAnchorMissing,
		Path:    path,
		Message: fmt.Sprintf("directive %q: no %s anchor", directive, anchor),
	}
}

// NewFetch creates an error for a failed remote retrieval.
func NewFetch(url string, err error) *RepairError {
	return &RepairError{
		Code:    ErrFetch,
		Path:    url,
		Message: "retrieval failed",
		Err:     err,
	}
}

// NewWrite creates an error for a failed local write.
func NewWrite(path string, err error) *RepairError {
	return &RepairError{
		Code:    ErrWrite,
		Path:    path,
		Message: "write failed",
		Err:     err,
	}
}

// NewAmbiguous creates an error for markup the structural patcher will not touch.
func NewAmbiguous(path, msg string) *RepairError {
	return &RepairError{
		Code:    ErrAmbiguousStructure,
		Path:    path,
		Message: msg,
	}
}

// NewCorpusUnreadable creates the one error that aborts a whole run.
func NewCorpusUnreadable(root string, err error) *RepairError {
	return &RepairError{
		Code:    ErrCorpusUnreadable,
		Path:    root,
		Message: "cannot enumerate corpus",
		Err:     err,
	}
}

// NewInvalidConfig wraps a configuration validation failure.
func NewInvalidConfig(err error) *RepairError {
	return &RepairError{
		Code:    ErrInvalidConfig,
		Message: "invalid configuration",
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a RepairError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *RepairError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}
