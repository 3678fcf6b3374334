// Package errhandling provides error types and classification.
// This file defines error categories, classification functions, and helper utilities
// for consistent error handling across the dumpfilter runtime.
package errhandling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// ErrorCategory represents the type/category of an error.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryInputAccess represents a source document that is missing or unreadable.
	CategoryInputAccess ErrorCategory = "input_access"

	// CategoryOutputAccess represents a destination that cannot be written
	// (permission denied, disk full, missing directory).
	CategoryOutputAccess ErrorCategory = "output_access"

	// CategoryDecoding represents input bytes that are not valid in the declared encoding.
	CategoryDecoding ErrorCategory = "decoding"

	// CategoryConfiguration represents invalid job or module configuration.
	CategoryConfiguration ErrorCategory = "configuration"

	// CategoryCanceled represents an execution interrupted through its context.
	CategoryCanceled ErrorCategory = "canceled"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Path is the file the error relates to (empty if none).
	Path string

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	msg := e.Message
	if e.OriginalErr != nil && msg != e.OriginalErr.Error() {
		msg = fmt.Sprintf("%s: %v", msg, e.OriginalErr)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s error (%s): %s", e.Category, e.Path, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Category, msg)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// DecodingError describes the first invalid byte sequence found in a source document.
type DecodingError struct {
	// Encoding is the declared encoding of the document
	Encoding string
	// Offset is the byte offset of the invalid sequence
	Offset int
	// Line is the 1-based line number of the invalid sequence
	Line int
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("invalid %s byte sequence at line %d (byte offset %d)", e.Encoding, e.Line, e.Offset)
}

// NewInputAccessError creates a ClassifiedError for an unreadable source document.
func NewInputAccessError(path, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryInputAccess,
		Path:        path,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewOutputAccessError creates a ClassifiedError for an unwritable destination.
func NewOutputAccessError(path, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryOutputAccess,
		Path:        path,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewDecodingError creates a ClassifiedError for a source document with invalid bytes.
func NewDecodingError(path string, decodeErr *DecodingError) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryDecoding,
		Path:        path,
		Message:     "source document is not valid " + decodeErr.Encoding,
		OriginalErr: decodeErr,
	}
}

// NewConfigurationError creates a ClassifiedError for invalid configuration.
func NewConfigurationError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryConfiguration,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// ClassifyError classifies any error into a ClassifiedError.
// Already classified errors are returned as is. Bare file system errors are
// classified as input access errors since reads happen before writes.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{
			Category: CategoryUnknown,
			Message:  "nil error",
		}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{
			Category:    CategoryCanceled,
			Message:     "execution canceled",
			OriginalErr: err,
		}
	}

	var decodeErr *DecodingError
	if errors.As(err, &decodeErr) {
		return &ClassifiedError{
			Category:    CategoryDecoding,
			Message:     decodeErr.Error(),
			OriginalErr: err,
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &ClassifiedError{
			Category:    CategoryInputAccess,
			Path:        pathErr.Path,
			Message:     DescribeFSError(err),
			OriginalErr: err,
		}
	}

	return &ClassifiedError{
		Category:    CategoryUnknown,
		Message:     err.Error(),
		OriginalErr: err,
	}
}

// DescribeFSError returns a short reason for common file system failures.
func DescribeFSError(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "file not found"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, syscall.ENOSPC):
		return "no space left on device"
	case errors.Is(err, syscall.EISDIR):
		return "is a directory"
	default:
		return err.Error()
	}
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil or unclassified errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return CategoryUnknown
}

// IsFatal returns true if rerunning the job unchanged cannot succeed.
// Access errors depend on the environment (permissions, free space) and are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch GetErrorCategory(err) {
	case CategoryConfiguration, CategoryDecoding:
		return true
	default:
		return false
	}
}
