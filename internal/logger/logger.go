// Package logger provides structured logging functionality.
// It wraps the standard log/slog package for consistent logging across the runtime.
//
// This package provides execution context helpers for consistent job logging,
// including helpers for execution start/end, stage start/end, and metrics logging.
// All helpers use structured logging with consistent field names (snake_case).
//
// Logs are written to stderr so that stdout stays reserved for the run summary.
// The package supports two output formats:
//   - JSON (default): Machine-readable structured logging
//   - Human: Human-readable console output with colored level glyphs
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the default logger instance.
var Logger *slog.Logger

var (
	mu      sync.Mutex
	console io.Writer = os.Stderr
	level             = slog.LevelInfo
	format            = FormatJSON
)

func init() {
	Logger = slog.New(newConsoleHandler())
}

// OutputFormat represents the log output format
type OutputFormat int

const (
	// FormatJSON is the default machine-readable JSON format
	FormatJSON OutputFormat = iota
	// FormatHuman is a human-readable console format with colors and prefixes
	FormatHuman
)

// ParseFormat converts a format name ("json", "human") to an OutputFormat.
func ParseFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "human", "text", "console":
		return FormatHuman, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q (expected json or human)", name)
	}
}

// SetLevel configures the logging level.
func SetLevel(l slog.Level) {
	SetLevelAndFormat(l, currentFormat())
}

// SetFormat sets the log output format.
func SetFormat(f OutputFormat) {
	SetLevelAndFormat(currentLevel(), f)
}

// SetLevelAndFormat sets both the log level and format.
func SetLevelAndFormat(l slog.Level, f OutputFormat) {
	mu.Lock()
	level = l
	format = f
	mu.Unlock()
	Logger = slog.New(newConsoleHandler())
}

// SetOutput redirects console logging to w. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	if w == nil {
		w = os.Stderr
	}
	console = w
	mu.Unlock()
	Logger = slog.New(newConsoleHandler())
}

func currentLevel() slog.Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

func currentFormat() OutputFormat {
	mu.Lock()
	defer mu.Unlock()
	return format
}

// newConsoleHandler builds the console handler from the current settings.
func newConsoleHandler() slog.Handler {
	mu.Lock()
	defer mu.Unlock()
	if format == FormatHuman {
		return NewHumanHandler(console, &HumanHandlerOptions{
			Level:     level,
			UseColors: isTerminal(console),
		})
	}
	return slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// WithJob returns a logger with job context.
func WithJob(jobID string) *slog.Logger {
	return Logger.With("job_id", jobID)
}

// WithModule returns a logger with module context.
func WithModule(stage, moduleType string) *slog.Logger {
	return Logger.With("stage", stage, "module_type", moduleType)
}

// =============================================================================
// Execution Context Types
// =============================================================================

// ExecutionContext contains context information for job execution logging.
type ExecutionContext struct {
	// JobID is the identifier of the job (required)
	JobID string
	// JobName is the human-readable name of the job
	JobName string
	// ExecutionID identifies a single run of the job
	ExecutionID string
	// Stage is the current execution stage (input, filter, output)
	Stage string
	// ModuleType is the type of module being executed (file, insertFilter, etc.)
	ModuleType string
	// DryRun indicates if this is a dry-run execution
	DryRun bool
	// FilterIndex is the index of the current filter (only logged for the filter stage)
	FilterIndex int
}

// ExecutionError contains structured error information for logging.
type ExecutionError struct {
	// Code is the error code (e.g., INPUT_FAILED)
	Code string
	// Message is the human-readable error message
	Message string
	// Category is the classified error category
	Category string
}

// ErrorContext contains structured context for error logging.
type ErrorContext struct {
	JobID       string
	ExecutionID string
	Stage       string
	ModuleType  string

	ErrorCode     string
	ErrorCategory string
	ErrorMessage  string
	Err           error

	// Path is the file involved in the failure, if any
	Path string
	// LineIndex is the 0-based line the failure relates to (-1 if none)
	LineIndex int
	Duration  time.Duration

	Extra map[string]interface{}
}

// ExecutionMetrics contains performance metrics for execution logging.
type ExecutionMetrics struct {
	TotalDuration  time.Duration
	InputDuration  time.Duration
	FilterDuration time.Duration
	OutputDuration time.Duration
	LinesRead      int
	LinesKept      int
	LinesDropped   int
	// LinesPerSecond is the read throughput
	LinesPerSecond float64
}

// =============================================================================
// Execution Context Helpers
// =============================================================================

// WithExecution returns a logger with execution context attached.
// Only non-empty fields are included in the log output.
func WithExecution(ctx ExecutionContext) *slog.Logger {
	return Logger.With(buildContextAttrs(ctx)...)
}

// LogExecutionStart logs the start of a job execution.
func LogExecutionStart(ctx ExecutionContext) {
	Logger.Info("execution started", buildContextAttrs(ctx)...)
}

// LogExecutionEnd logs the completion of a job execution.
func LogExecutionEnd(ctx ExecutionContext, status string, linesKept int, duration time.Duration) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.String("status", status),
		slog.Int("lines_kept", linesKept),
		slog.Duration("duration", duration),
	)
	Logger.Info("execution completed", attrs...)
}

// LogStageStart logs the start of a job stage (input, filter, output).
func LogStageStart(ctx ExecutionContext) {
	Logger.Debug("stage started", buildContextAttrs(ctx)...)
}

// LogStageEnd logs the completion of a job stage.
// If err is non-nil, logs as an error with error details.
func LogStageEnd(ctx ExecutionContext, lineCount int, duration time.Duration, err *ExecutionError) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Int("line_count", lineCount),
		slog.Duration("duration", duration),
	)

	if err != nil {
		attrs = append(attrs,
			slog.String("error_code", err.Code),
			slog.String("error", err.Message),
		)
		if err.Category != "" {
			attrs = append(attrs, slog.String("error_category", err.Category))
		}
		Logger.Error("stage failed", attrs...)
		return
	}
	Logger.Info("stage completed", attrs...)
}

// LogMetrics logs execution performance metrics.
func LogMetrics(ctx ExecutionContext, metrics ExecutionMetrics) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Duration("total_duration", metrics.TotalDuration),
		slog.Duration("input_duration", metrics.InputDuration),
		slog.Duration("filter_duration", metrics.FilterDuration),
		slog.Duration("output_duration", metrics.OutputDuration),
		slog.Int("lines_read", metrics.LinesRead),
		slog.Int("lines_kept", metrics.LinesKept),
		slog.Int("lines_dropped", metrics.LinesDropped),
		slog.Float64("lines_per_second", metrics.LinesPerSecond),
	)
	Logger.Debug("execution metrics", attrs...)
}

// LogError logs an error with full execution context.
func LogError(message string, errCtx ErrorContext) {
	attrs := make([]any, 0, 16)

	if errCtx.JobID != "" {
		attrs = append(attrs, slog.String("job_id", errCtx.JobID))
	}
	if errCtx.ExecutionID != "" {
		attrs = append(attrs, slog.String("execution_id", errCtx.ExecutionID))
	}
	if errCtx.Stage != "" {
		attrs = append(attrs, slog.String("stage", errCtx.Stage))
	}
	if errCtx.ModuleType != "" {
		attrs = append(attrs, slog.String("module_type", errCtx.ModuleType))
	}
	if errCtx.ErrorCode != "" {
		attrs = append(attrs, slog.String("error_code", errCtx.ErrorCode))
	}
	if errCtx.ErrorCategory != "" {
		attrs = append(attrs, slog.String("error_category", errCtx.ErrorCategory))
	}
	if errCtx.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", errCtx.ErrorMessage))
	}
	if errCtx.Err != nil {
		attrs = append(attrs, slog.String("error_type", fmt.Sprintf("%T", errCtx.Err)))
		if chain := errorChain(errCtx.Err); len(chain) > 1 {
			attrs = append(attrs, slog.String("error_chain", strings.Join(chain, " -> ")))
		}
	}
	if errCtx.Path != "" {
		attrs = append(attrs, slog.String("path", errCtx.Path))
	}
	if errCtx.LineIndex >= 0 {
		attrs = append(attrs, slog.Int("line_index", errCtx.LineIndex))
	}
	if errCtx.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", errCtx.Duration))
	}
	for k, v := range errCtx.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}

	Logger.Error(message, attrs...)
}

func errorChain(err error) []string {
	chain := []string{err.Error()}
	for current := errors.Unwrap(err); current != nil; current = errors.Unwrap(current) {
		chain = append(chain, current.Error())
	}
	return chain
}

// buildContextAttrs builds a slice of slog attributes from an ExecutionContext.
func buildContextAttrs(ctx ExecutionContext) []any {
	attrs := make([]any, 0, 8)
	attrs = append(attrs, slog.String("job_id", ctx.JobID))

	if ctx.JobName != "" {
		attrs = append(attrs, slog.String("job_name", ctx.JobName))
	}
	if ctx.ExecutionID != "" {
		attrs = append(attrs, slog.String("execution_id", ctx.ExecutionID))
	}
	if ctx.Stage != "" {
		attrs = append(attrs, slog.String("stage", ctx.Stage))
	}
	if ctx.ModuleType != "" {
		attrs = append(attrs, slog.String("module_type", ctx.ModuleType))
	}
	if ctx.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if ctx.Stage == "filter" && ctx.FilterIndex >= 0 {
		attrs = append(attrs, slog.Int("filter_index", ctx.FilterIndex))
	}
	return attrs
}

// isTerminal returns true if the writer is a terminal (supports colors)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return false
		}
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// FormatMetricsHuman formats execution metrics in a human-readable way.
func FormatMetricsHuman(metrics ExecutionMetrics) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Kept %d of %d lines in %s",
		metrics.LinesKept,
		metrics.LinesRead,
		formatDuration(metrics.TotalDuration))

	if metrics.LinesPerSecond > 0 {
		fmt.Fprintf(&sb, " (%.1f lines/sec)", metrics.LinesPerSecond)
	}
	if metrics.LinesDropped > 0 {
		fmt.Fprintf(&sb, ", %d dropped", metrics.LinesDropped)
	}
	return sb.String()
}
