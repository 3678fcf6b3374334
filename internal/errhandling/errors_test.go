package errhandling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// TestErrorCategory tests error category constants and their string values.
func TestErrorCategory(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{CategoryInputAccess, "input_access"},
		{CategoryOutputAccess, "output_access"},
		{CategoryDecoding, "decoding"},
		{CategoryConfiguration, "configuration"},
		{CategoryCanceled, "canceled"},
		{CategoryUnknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.category) != tt.expected {
				t.Errorf("ErrorCategory = %v, want %v", tt.category, tt.expected)
			}
		})
	}
}

// TestClassifiedError tests the ClassifiedError type.
func TestClassifiedError(t *testing.T) {
	t.Run("Error message with path", func(t *testing.T) {
		err := NewInputAccessError("dump.sql", "file not found", fs.ErrNotExist)
		got := err.Error()
		want := "input_access error (dump.sql): file not found: file does not exist"
		if got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("Error message without path", func(t *testing.T) {
		err := NewConfigurationError("missing input", nil)
		if got := err.Error(); got != "configuration error: missing input" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("Message equal to original is not repeated", func(t *testing.T) {
		original := errors.New("boom")
		err := &ClassifiedError{Category: CategoryUnknown, Message: "boom", OriginalErr: original}
		if got := err.Error(); got != "unknown error: boom" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("Unwrap returns original error", func(t *testing.T) {
		original := errors.New("original error")
		err := NewOutputAccessError("out.sql", "permission denied", original)
		if !errors.Is(err, original) {
			t.Error("errors.Is should find the original error")
		}
		if err.Unwrap() != original {
			t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), original)
		}
	})
}

func TestDecodingError(t *testing.T) {
	decodeErr := &DecodingError{Encoding: "utf-8", Offset: 42, Line: 3}
	if got := decodeErr.Error(); got != "invalid utf-8 byte sequence at line 3 (byte offset 42)" {
		t.Errorf("Error() = %q", got)
	}

	err := NewDecodingError("dump.sql", decodeErr)
	if err.Category != CategoryDecoding {
		t.Errorf("Category = %v, want decoding", err.Category)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Error() = %q, want to mention the line", err.Error())
	}

	var target *DecodingError
	if !errors.As(err, &target) || target.Offset != 42 {
		t.Errorf("errors.As should expose the DecodingError, got %+v", target)
	}
}

// TestClassifyError tests the main classification entry point.
func TestClassifyError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.sql")
	_, openErr := os.Open(missing)
	if openErr == nil {
		t.Fatal("expected open to fail")
	}

	tests := []struct {
		name         string
		err          error
		wantCategory ErrorCategory
		wantMessage  string
	}{
		{
			name:         "nil error",
			err:          nil,
			wantCategory: CategoryUnknown,
			wantMessage:  "nil error",
		},
		{
			name:         "already classified",
			err:          fmt.Errorf("reading: %w", NewOutputAccessError("x", "disk full", nil)),
			wantCategory: CategoryOutputAccess,
			wantMessage:  "disk full",
		},
		{
			name:         "context canceled",
			err:          fmt.Errorf("fetch: %w", context.Canceled),
			wantCategory: CategoryCanceled,
			wantMessage:  "execution canceled",
		},
		{
			name:         "deadline exceeded",
			err:          context.DeadlineExceeded,
			wantCategory: CategoryCanceled,
			wantMessage:  "execution canceled",
		},
		{
			name:         "bare decoding error",
			err:          &DecodingError{Encoding: "utf-8", Offset: 1, Line: 1},
			wantCategory: CategoryDecoding,
			wantMessage:  "invalid utf-8 byte sequence at line 1 (byte offset 1)",
		},
		{
			name:         "missing file",
			err:          openErr,
			wantCategory: CategoryInputAccess,
			wantMessage:  "file not found",
		},
		{
			name:         "plain error",
			err:          errors.New("something odd"),
			wantCategory: CategoryUnknown,
			wantMessage:  "something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %v, want %v", got.Category, tt.wantCategory)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}

	t.Run("path errors keep the path", func(t *testing.T) {
		got := ClassifyError(openErr)
		if got.Path != missing {
			t.Errorf("Path = %q, want %q", got.Path, missing)
		}
	})
}

func TestDescribeFSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not exist", &fs.PathError{Op: "open", Path: "a", Err: fs.ErrNotExist}, "file not found"},
		{"permission", &fs.PathError{Op: "open", Path: "a", Err: fs.ErrPermission}, "permission denied"},
		{"no space", &fs.PathError{Op: "write", Path: "a", Err: syscall.ENOSPC}, "no space left on device"},
		{"directory", &fs.PathError{Op: "read", Path: "a", Err: syscall.EISDIR}, "is a directory"},
		{"other", errors.New("weird"), "weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeFSError(tt.err); got != tt.want {
				t.Errorf("DescribeFSError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", NewConfigurationError("bad", nil), true},
		{"decoding", NewDecodingError("a", &DecodingError{Encoding: "utf-8"}), true},
		{"input access", NewInputAccessError("a", "file not found", nil), false},
		{"output access", NewOutputAccessError("a", "permission denied", nil), false},
		{"unclassified", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	if got := GetErrorCategory(nil); got != CategoryUnknown {
		t.Errorf("GetErrorCategory(nil) = %v", got)
	}
	wrapped := fmt.Errorf("ctx: %w", NewInputAccessError("a", "m", nil))
	if got := GetErrorCategory(wrapped); got != CategoryInputAccess {
		t.Errorf("GetErrorCategory(wrapped) = %v, want input_access", got)
	}
	if got := GetErrorCategory(errors.New("plain")); got != CategoryUnknown {
		t.Errorf("GetErrorCategory(plain) = %v, want unknown", got)
	}
}
