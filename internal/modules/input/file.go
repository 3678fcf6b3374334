package input

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"

	"github.com/canectors/dumpfilter/internal/errhandling"
	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/pathutil"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// Default configuration values
const (
	DefaultPath = "rodovias_sp_full.sql"

	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"

	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionGzip = "gzip"

	NewlineUniversal = "universal"
	NewlinePreserve  = "preserve"
)

// File reads a dump from the local file system.
type File struct {
	path        string
	encoding    string
	compression string
	newline     string
}

// NewFileFromConfig creates a file input module from configuration.
//
// Optional config fields:
//   - path: source file (default rodovias_sp_full.sql)
//   - encoding: utf-8 (default), latin1 or windows-1252
//   - compression: auto (default, gzip for .gz paths), none or gzip
//   - newline: universal (default, \r\n and \r read as \n) or preserve
func NewFileFromConfig(config *dump.ModuleConfig) (*File, error) {
	if config == nil {
		return nil, ErrNilConfig
	}

	f := &File{
		path:        DefaultPath,
		encoding:    EncodingUTF8,
		compression: CompressionAuto,
		newline:     NewlineUniversal,
	}
	if v, ok := config.Config["path"].(string); ok && v != "" {
		f.path = v
	}
	if v, ok := config.Config["encoding"].(string); ok && v != "" {
		f.encoding = normalizeEncoding(v)
	}
	if v, ok := config.Config["compression"].(string); ok && v != "" {
		f.compression = strings.ToLower(v)
	}
	if v, ok := config.Config["newline"].(string); ok && v != "" {
		f.newline = strings.ToLower(v)
	}

	switch f.encoding {
	case EncodingUTF8, EncodingLatin1, EncodingWindows1252:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, f.encoding)
	}
	switch f.compression {
	case CompressionAuto, CompressionNone, CompressionGzip:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, f.compression)
	}
	switch f.newline {
	case NewlineUniversal, NewlinePreserve:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNewline, f.newline)
	}

	logger.Debug("file input module created",
		"path", f.path,
		"encoding", f.encoding,
		"compression", f.compression,
		"newline", f.newline,
	)
	return f, nil
}

func normalizeEncoding(name string) string {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return EncodingUTF8
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1
	case "windows-1252", "cp1252":
		return EncodingWindows1252
	default:
		return name
	}
}

// Location returns the source file path.
func (f *File) Location() string {
	return f.path
}

// Fetch reads the whole file, decodes it and splits it on "\n".
// A trailing newline yields a final empty line and an empty file yields one empty line.
func (f *File) Fetch(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := f.read()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := f.decode(data)
	if err != nil {
		return nil, err
	}
	if f.newline == NewlineUniversal {
		content = normalizeNewlines(content)
	}

	lines := strings.Split(content, "\n")
	logger.Debug("source document read",
		"path", f.path,
		"bytes", len(data),
		"line_count", len(lines),
	)
	return lines, nil
}

func (f *File) read() ([]byte, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, errhandling.NewInputAccessError(f.path, errhandling.DescribeFSError(err), err)
	}
	defer func() {
		_ = file.Close()
	}()

	var r io.Reader = file
	if f.gzipped() {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errhandling.NewInputAccessError(f.path, "not a gzip stream", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errhandling.NewInputAccessError(f.path, errhandling.DescribeFSError(err), err)
	}
	return data, nil
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

func (f *File) decode(data []byte) (string, error) {
	switch f.encoding {
	case EncodingLatin1:
		return decodeCharmap(f.path, charmap.ISO8859_1, data)
	case EncodingWindows1252:
		return decodeCharmap(f.path, charmap.Windows1252, data)
	}

	if offset := invalidUTF8Offset(data); offset >= 0 {
		return "", errhandling.NewDecodingError(f.path, &errhandling.DecodingError{
			Encoding: EncodingUTF8,
			Offset:   offset,
			Line:     bytes.Count(data[:offset], []byte("\n")) + 1,
		})
	}
	return string(data), nil
}

func decodeCharmap(path string, cm *charmap.Charmap, data []byte) (string, error) {
	out, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", errhandling.NewDecodingError(path, &errhandling.DecodingError{Encoding: cm.String()})
	}
	return string(out), nil
}

// invalidUTF8Offset returns the byte offset of the first invalid UTF-8 sequence, or -1.
func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Close releases resources (the file is closed after each read).
func (f *File) Close() error {
	return nil
}

var (
	_ Module  = (*File)(nil)
	_ Locator = (*File)(nil)
)
