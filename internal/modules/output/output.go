// Package output provides implementations for output modules.
// Output modules are responsible for writing the kept lines to a destination.
package output

import (
	"context"
	"errors"

	"github.com/canectors/dumpfilter/pkg/dump"
)

// Errors shared by output modules.
var (
	ErrNilConfig              = errors.New("module configuration is nil")
	ErrUnsupportedCompression = errors.New("unsupported compression")
)

// DefaultPreviewLines is the number of lines shown in a dry-run preview.
const DefaultPreviewLines = 10

// Module represents an output module that writes lines to a destination.
type Module interface {
	// Send writes the lines as the complete contents of the destination.
	// Returns the number of lines written and any error.
	Send(ctx context.Context, lines []string) (int, error)

	// Close releases any resources held by the module.
	Close() error
}

// PreviewOptions configures dry-run previews.
type PreviewOptions struct {
	// HeadLines is the number of leading lines to include (0 uses DefaultPreviewLines)
	HeadLines int
}

// PreviewableModule is implemented by output modules that can describe a
// write without performing it.
type PreviewableModule interface {
	Module
	Preview(lines []string, opts PreviewOptions) (*dump.OutputPreview, error)
}

// Locator is implemented by output modules backed by a file path.
type Locator interface {
	Location() string
}
