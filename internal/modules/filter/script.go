// Script module decides which lines to keep with a JavaScript function run by Goja.
package filter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/pathutil"
	"github.com/canectors/dumpfilter/internal/sqldump"
)

// Error codes for script module
const (
	ErrCodeScriptEmpty          = "SCRIPT_EMPTY"
	ErrCodeScriptTooLong        = "SCRIPT_TOO_LONG"
	ErrCodeCompilationFailed    = "COMPILATION_FAILED"
	ErrCodeMissingKeep          = "MISSING_KEEP"
	ErrCodeNotFunction          = "NOT_FUNCTION"
	ErrCodeExecutionFailed      = "EXECUTION_FAILED"
	ErrCodeInvalidScriptFile    = "INVALID_SCRIPT_FILE"
	ErrCodeScriptFileReadFailed = "SCRIPT_FILE_READ_FAILED"
)

// MaxScriptLength is the maximum allowed script length in bytes (100KB)
const MaxScriptLength = 100 * 1024

// Common errors for script module
var (
	// ErrScriptEmpty is returned when the script is empty or whitespace-only
	ErrScriptEmpty = fmt.Errorf("script cannot be empty")
	// ErrScriptTooLong is returned when the script exceeds MaxScriptLength
	ErrScriptTooLong = fmt.Errorf("script exceeds maximum length")
	// ErrMissingKeepFunc is returned when the script doesn't define a keep function
	ErrMissingKeepFunc = fmt.Errorf("keep function not found in script")
	// ErrKeepNotFunction is returned when keep is defined but is not a function
	ErrKeepNotFunction = fmt.Errorf("keep is not a function")
)

// ScriptConfig represents the configuration for a script filter module.
// Either Script or ScriptFile must be provided (but not both).
type ScriptConfig struct {
	// Script is the inline JavaScript source defining keep(line, stmt)
	Script string `json:"script,omitempty"`
	// ScriptFile is the path to a JavaScript file defining keep(line, stmt)
	ScriptFile string `json:"scriptFile,omitempty"`
	// OnError specifies error handling mode: "fail" (default), "skip", "log"
	OnError string `json:"onError,omitempty"`
}

// ScriptModule keeps the lines for which the script's keep(line, stmt) returns true.
// stmt is an object with table, columns and rows for INSERT lines that parse,
// and null for every other line.
//
// Goja runtimes are not goroutine-safe: each ScriptModule owns one and
// Process must not be called concurrently on the same instance.
type ScriptModule struct {
	onError     string
	runtime     *goja.Runtime
	keepFn      goja.Callable
	console     *jsConsole
	interruptMu sync.Mutex
}

// ScriptError carries structured context for script execution failures.
type ScriptError struct {
	Code       string
	Message    string
	LineIndex  int
	StackTrace string
	Err        error
}

func (e *ScriptError) Error() string {
	return e.Message
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func newScriptError(code, message string, lineIdx int, stackTrace string, err error) *ScriptError {
	return &ScriptError{
		Code:       code,
		Message:    message,
		LineIndex:  lineIdx,
		StackTrace: stackTrace,
		Err:        err,
	}
}

// ParseScriptConfig parses a script filter configuration from raw config.
func ParseScriptConfig(cfg map[string]interface{}) (ScriptConfig, error) {
	config := ScriptConfig{}

	script, hasScript := cfg["script"].(string)
	scriptFile, hasScriptFile := cfg["scriptFile"].(string)

	if hasScript && hasScriptFile {
		return config, fmt.Errorf("cannot specify both 'script' and 'scriptFile' - use only one")
	}
	if !hasScript && !hasScriptFile {
		if cfg["script"] != nil {
			return config, fmt.Errorf("field 'script' must be a string")
		}
		if cfg["scriptFile"] != nil {
			return config, fmt.Errorf("field 'scriptFile' must be a string")
		}
		return config, fmt.Errorf("either 'script' or 'scriptFile' is required in script config")
	}

	config.Script = script
	config.ScriptFile = scriptFile
	config.OnError, _ = cfg["onError"].(string)
	return config, nil
}

// NewScriptFromConfig creates a new script filter module from configuration.
// The script is compiled once and must define a keep function.
func NewScriptFromConfig(config ScriptConfig) (*ScriptModule, error) {
	source, err := resolveScriptSource(config)
	if err != nil {
		return nil, err
	}
	if err := validateScript(source); err != nil {
		return nil, err
	}

	onError, valid := normalizeOnError(config.OnError)
	if !valid {
		logger.Warn("invalid onError value for script module; defaulting to fail",
			slog.String("on_error", config.OnError),
		)
	}

	vm := goja.New()

	console, err := newJSConsole(vm)
	if err != nil {
		return nil, fmt.Errorf("installing console: %w", err)
	}

	if _, err := vm.RunString(source); err != nil {
		return nil, newScriptError(ErrCodeCompilationFailed, fmt.Sprintf("script compilation failed: %v", err), -1, "", err)
	}

	keepVal := vm.Get("keep")
	if keepVal == nil || goja.IsUndefined(keepVal) {
		return nil, newScriptError(ErrCodeMissingKeep, "keep function not found in script", -1, "", ErrMissingKeepFunc)
	}
	keepFn, ok := goja.AssertFunction(keepVal)
	if !ok {
		return nil, newScriptError(ErrCodeNotFunction, "keep is not a function", -1, "", ErrKeepNotFunction)
	}

	logger.Debug("script module initialized",
		slog.Int("script_length", len(source)),
		slog.String("on_error", onError),
		slog.Bool("from_file", config.ScriptFile != ""),
	)

	return &ScriptModule{
		onError: onError,
		runtime: vm,
		keepFn:  keepFn,
		console: console,
	}, nil
}

// resolveScriptSource returns the inline script or reads the script file.
func resolveScriptSource(config ScriptConfig) (string, error) {
	if config.Script != "" && config.ScriptFile != "" {
		return "", newScriptError(ErrCodeInvalidScriptFile, "cannot specify both 'script' and 'scriptFile' - use only one", -1, "", nil)
	}
	if config.Script != "" {
		return config.Script, nil
	}
	if config.ScriptFile == "" {
		return "", newScriptError(ErrCodeScriptEmpty, "either 'script' or 'scriptFile' must be provided", -1, "", ErrScriptEmpty)
	}

	if err := pathutil.ValidateFilePath(config.ScriptFile); err != nil {
		return "", newScriptError(ErrCodeInvalidScriptFile, fmt.Sprintf("invalid scriptFile: %v", err), -1, "", err)
	}
	if filepath.IsAbs(config.ScriptFile) {
		logger.Warn("scriptFile uses absolute path", slog.String("path", config.ScriptFile))
	}

	file, err := os.Open(config.ScriptFile)
	if err != nil {
		return "", newScriptError(ErrCodeScriptFileReadFailed, fmt.Sprintf("failed to open script file %q: %v", config.ScriptFile, err), -1, "", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("failed to close script file",
				slog.String("file", config.ScriptFile),
				slog.String("error", closeErr.Error()),
			)
		}
	}()

	// Read one byte past the limit to detect oversized files.
	content, err := io.ReadAll(io.LimitReader(file, MaxScriptLength+1))
	if err != nil {
		return "", newScriptError(ErrCodeScriptFileReadFailed, fmt.Sprintf("failed to read script file %q: %v", config.ScriptFile, err), -1, "", err)
	}
	if len(content) > MaxScriptLength {
		return "", newScriptError(ErrCodeScriptTooLong, fmt.Sprintf("script file %q is larger than %d bytes", config.ScriptFile, MaxScriptLength), -1, "", ErrScriptTooLong)
	}
	return string(content), nil
}

func validateScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return newScriptError(ErrCodeScriptEmpty, "script cannot be empty", -1, "", ErrScriptEmpty)
	}
	if len(script) > MaxScriptLength {
		return newScriptError(ErrCodeScriptTooLong, fmt.Sprintf("script exceeds maximum length: %d bytes exceeds maximum %d bytes", len(script), MaxScriptLength), -1, "", ErrScriptTooLong)
	}
	return nil
}

// Process calls keep(line, stmt) for each line and returns the lines it accepted.
func (m *ScriptModule) Process(ctx context.Context, lines []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	result := make([]string, 0, len(lines))
	errorCount := 0

	stop := m.watchCancel(ctx)
	defer stop()

	for idx, line := range lines {
		keep, err := m.keepLine(ctx, line, idx)
		if err == nil {
			if keep {
				result = append(result, line)
			}
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		errorCount++
		switch m.onError {
		case OnErrorSkip:
			logger.Warn("skipping line due to script error",
				slog.String("module_type", "script"),
				slog.Int("line_index", idx),
				slog.String("error", err.Error()),
			)
		case OnErrorLog:
			logger.Error("script error (keeping line)",
				slog.String("module_type", "script"),
				slog.Int("line_index", idx),
				slog.String("error", err.Error()),
			)
			result = append(result, line)
		default:
			logger.Error("filter processing failed",
				slog.String("module_type", "script"),
				slog.Int("line_index", idx),
				slog.Duration("duration", time.Since(startTime)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
	}

	logger.Debug("filter processing completed",
		slog.String("module_type", "script"),
		slog.Int("input_lines", len(lines)),
		slog.Int("output_lines", len(result)),
		slog.Int("error_count", errorCount),
		slog.Duration("duration", time.Since(startTime)),
	)
	return result, nil
}

// watchCancel interrupts the runtime when ctx is canceled. The returned
// function stops watching and clears any pending interrupt.
func (m *ScriptModule) watchCancel(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.interruptMu.Lock()
			m.runtime.Interrupt(ctx.Err().Error())
			m.interruptMu.Unlock()
		case <-done:
		}
	}()
	return func() {
		close(done)
		m.interruptMu.Lock()
		m.runtime.ClearInterrupt()
		m.interruptMu.Unlock()
	}
}

func (m *ScriptModule) keepLine(ctx context.Context, line string, idx int) (bool, error) {
	m.console.SetLineIndex(idx)
	defer m.console.ClearLineIndex()

	result, err := m.keepFn(goja.Undefined(), m.runtime.ToValue(line), m.statementValue(line))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, m.handleJSError(err, idx)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return false, newScriptError(ErrCodeExecutionFailed, fmt.Sprintf("keep returned %v at line %d - keep must return a boolean", result, idx), idx, "", nil)
	}
	return result.ToBoolean(), nil
}

// statementValue exposes the parsed INSERT statement to the script, or null.
func (m *ScriptModule) statementValue(line string) goja.Value {
	if !sqldump.IsInsert(line) {
		return goja.Null()
	}
	stmt, err := sqldump.Parse(line)
	if err != nil {
		return goja.Null()
	}
	columns := make([]interface{}, len(stmt.Columns))
	for i, c := range stmt.Columns {
		columns[i] = c
	}
	rows := make([]interface{}, len(stmt.Rows))
	for i, row := range stmt.Rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			if !v.Null {
				values[j] = v.Text
			}
		}
		rows[i] = m.runtime.NewArray(values...)
	}

	obj := m.runtime.NewObject()
	_ = obj.Set("table", stmt.Table)
	_ = obj.Set("columns", m.runtime.NewArray(columns...))
	_ = obj.Set("rows", m.runtime.NewArray(rows...))
	return obj
}

func (m *ScriptModule) handleJSError(err error, idx int) error {
	if jsErr, ok := err.(*goja.Exception); ok {
		stackTrace := ""
		if obj, ok := jsErr.Value().(*goja.Object); ok {
			if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
				stackTrace = stack.String()
			}
		}
		message := fmt.Sprintf("script execution failed at line %d: %v", idx, jsErr.Value())
		return newScriptError(ErrCodeExecutionFailed, message, idx, stackTrace, err)
	}
	return newScriptError(ErrCodeExecutionFailed, fmt.Sprintf("script execution failed at line %d: %v", idx, err), idx, "", err)
}

var _ Module = (*ScriptModule)(nil)
