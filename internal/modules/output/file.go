package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/canectors/dumpfilter/internal/errhandling"
	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/pathutil"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// Default configuration values
const (
	DefaultPath = "rodovias_sp_filtered.sql"

	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionGzip = "gzip"

	filePerm = 0o644
)

// File writes lines to a local file, replacing any previous contents.
type File struct {
	path        string
	compression string
}

// NewFileFromConfig creates a file output module from configuration.
//
// Optional config fields:
//   - path: destination file (default rodovias_sp_filtered.sql)
//   - compression: auto (default, gzip for .gz paths), none or gzip
func NewFileFromConfig(config *dump.ModuleConfig) (*File, error) {
	if config == nil {
		return nil, ErrNilConfig
	}

	f := &File{path: DefaultPath, compression: CompressionAuto}
	if v, ok := config.Config["path"].(string); ok && v != "" {
		f.path = v
	}
	if v, ok := config.Config["compression"].(string); ok && v != "" {
		f.compression = strings.ToLower(v)
	}
	switch f.compression {
	case CompressionAuto, CompressionNone, CompressionGzip:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, f.compression)
	}

	logger.Debug("file output module created",
		slog.String("path", f.path),
		slog.String("compression", f.compression),
	)
	return f, nil
}

// Location returns the destination file path.
func (f *File) Location() string {
	return f.path
}

func (f *File) gzipped() bool {
	switch f.compression {
	case CompressionGzip:
		return true
	case CompressionAuto:
		return pathutil.HasGzipExtension(f.path)
	default:
		return false
	}
}

// Send writes the lines joined by "\n". No newline is added after the last line.
func (f *File) Send(ctx context.Context, lines []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	content := strings.Join(lines, "\n")
	if err := f.write(content); err != nil {
		return 0, err
	}

	logger.Debug("destination document written",
		slog.String("path", f.path),
		slog.Int("bytes", len(content)),
		slog.Int("line_count", len(lines)),
	)
	return len(lines), nil
}

func (f *File) write(content string) (err error) {
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return f.accessError(err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = f.accessError(closeErr)
		}
	}()

	var w io.Writer = file
	var gz *gzip.Writer
	if f.gzipped() {
		gz = gzip.NewWriter(file)
		w = gz
	}

	if _, err := io.WriteString(w, content); err != nil {
		return f.accessError(err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return f.accessError(err)
		}
	}
	return nil
}

func (f *File) accessError(err error) error {
	return errhandling.NewOutputAccessError(f.path, errhandling.DescribeFSError(err), err)
}

// Preview describes the write that Send would perform.
func (f *File) Preview(lines []string, opts PreviewOptions) (*dump.OutputPreview, error) {
	headLines := opts.HeadLines
	if headLines <= 0 {
		headLines = DefaultPreviewLines
	}
	if headLines > len(lines) {
		headLines = len(lines)
	}

	size := 0
	for _, line := range lines {
		size += len(line)
	}
	if len(lines) > 1 {
		size += len(lines) - 1
	}

	head := make([]string, headLines)
	copy(head, lines[:headLines])

	return &dump.OutputPreview{
		Destination: f.path,
		LineCount:   len(lines),
		ByteCount:   size,
		Head:        head,
	}, nil
}

// Close releases resources (the file is closed after each write).
func (f *File) Close() error {
	return nil
}

var (
	_ PreviewableModule = (*File)(nil)
	_ Locator           = (*File)(nil)
)
