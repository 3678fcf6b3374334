// Package input provides implementations for input modules.
// Input modules are responsible for reading the source document and
// splitting it into lines.
package input

import (
	"context"
	"errors"
)

// Errors shared by input modules.
var (
	ErrNilConfig              = errors.New("module configuration is nil")
	ErrUnsupportedEncoding    = errors.New("unsupported encoding")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrUnsupportedNewline     = errors.New("unsupported newline mode")
)

// Module represents an input module that reads a source document.
type Module interface {
	// Fetch reads the whole source and returns it as ordered lines.
	// The context can be used to cancel long-running reads.
	Fetch(ctx context.Context) ([]string, error)
	// Close releases any resources held by the module.
	Close() error
}

// Locator is implemented by input modules backed by a file path.
// The runtime uses it to stop an output from overwriting its own source.
type Locator interface {
	Location() string
}
