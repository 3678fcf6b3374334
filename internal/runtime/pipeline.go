// Package runtime provides the job execution engine.
// It orchestrates the execution of Input, Filter, and Output modules.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/canectors/dumpfilter/internal/errhandling"
	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/modules/filter"
	"github.com/canectors/dumpfilter/internal/modules/input"
	"github.com/canectors/dumpfilter/internal/modules/output"
	"github.com/canectors/dumpfilter/internal/pathutil"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// Error codes for job execution errors
const (
	ErrCodeInputFailed  = "INPUT_FAILED"
	ErrCodeFilterFailed = "FILTER_FAILED"
	ErrCodeOutputFailed = "OUTPUT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeCanceled     = "CANCELED"
)

// Execution status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common errors
var (
	// ErrNilJob is returned when the job configuration is nil
	ErrNilJob = errors.New("job configuration is nil")

	// ErrNilInputModule is returned when input module is nil
	ErrNilInputModule = errors.New("input module is nil")

	// ErrNilOutputModule is returned when output module is nil
	ErrNilOutputModule = errors.New("output module is nil")

	// ErrOverwritesSource is returned when the destination is the source document
	ErrOverwritesSource = errors.New("destination is the source document")
)

// Executor is responsible for executing jobs.
// It orchestrates the execution flow: Input → Filters → Output.
//
// The Executor only interacts with modules through their public interfaces.
type Executor struct {
	inputModule   input.Module
	filterModules []filter.Module
	outputModule  output.Module
	dryRun        bool
}

// NewExecutor creates a new executor with only the dry-run flag.
// Modules must be set separately.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{
		dryRun: dryRun,
	}
}

// NewExecutorWithModules creates a new executor with all modules configured.
//
// Parameters:
//   - inputModule: The input module that reads the source document
//   - filterModules: Optional filter modules applied in order (can be nil)
//   - outputModule: The output module that writes the kept lines
//   - dryRun: If true, the output module is previewed instead of written
func NewExecutorWithModules(
	inputModule input.Module,
	filterModules []filter.Module,
	outputModule output.Module,
	dryRun bool,
) *Executor {
	return &Executor{
		inputModule:   inputModule,
		filterModules: filterModules,
		outputModule:  outputModule,
		dryRun:        dryRun,
	}
}

// filterResult holds the result of filter module execution
type filterResult struct {
	lines  []string
	err    error
	errIdx int
}

// Execute runs a job with a background context.
func (e *Executor) Execute(job *dump.Job) (*dump.ExecutionResult, error) {
	return e.ExecuteWithContext(context.Background(), job)
}

// ExecuteWithContext runs a job with the given context.
//
// Execution flow:
//  1. Validate the job and modules
//  2. Refuse to run when the output would overwrite the input
//  3. Execute the Input module to read the source lines
//  4. Execute Filter modules in sequence (if any)
//  5. Execute the Output module (or build a preview in dry-run mode)
//  6. Return ExecutionResult with status, counts and timings
//
// The input module is closed as soon as it has been read; the output
// module is closed at the end of execution.
func (e *Executor) ExecuteWithContext(ctx context.Context, job *dump.Job) (*dump.ExecutionResult, error) {
	startedAt := time.Now()
	result := e.newErrorResult(startedAt)

	if err := e.validateExecution(job, result); err != nil {
		return result, err
	}
	result.JobID = job.ID

	execCtx := logger.ExecutionContext{
		JobID:       job.ID,
		JobName:     job.Name,
		ExecutionID: result.ExecutionID,
		DryRun:      e.dryRun,
		FilterIndex: -1,
	}
	logger.LogExecutionStart(execCtx)

	if e.outputModule != nil {
		defer e.closeModule(execCtx, "output", e.outputModule)
	}

	fail := func(err error) (*dump.ExecutionResult, error) {
		result.CompletedAt = time.Now()
		logger.LogExecutionEnd(execCtx, StatusError, result.LinesKept, time.Since(startedAt))
		return result, err
	}

	if err := e.checkDestination(); err != nil {
		result.Error = buildExecutionError(ErrCodeOutputFailed, "output", err)
		logger.LogError("refusing to overwrite source document", logger.ErrorContext{
			JobID:         job.ID,
			ExecutionID:   result.ExecutionID,
			Stage:         "output",
			ErrorCode:     ErrCodeOutputFailed,
			ErrorCategory: result.Error.ErrorCategory,
			ErrorMessage:  err.Error(),
			Err:           err,
			Path:          errhandling.ClassifyError(err).Path,
			LineIndex:     -1,
		})
		return fail(err)
	}

	lines, err := e.executeInput(ctx, execCtx, result)
	e.closeModule(execCtx, "input", e.inputModule)
	e.inputModule = nil
	if err != nil {
		return fail(err)
	}
	result.LinesRead = len(lines)

	if err := e.checkCanceled(ctx, result); err != nil {
		return fail(err)
	}

	kept, err := e.executeFiltersWithResult(ctx, execCtx, lines, result)
	if err != nil {
		return fail(err)
	}
	result.LinesKept = len(kept)
	result.LinesDropped = len(lines) - len(kept)

	if err := e.checkCanceled(ctx, result); err != nil {
		return fail(err)
	}

	if e.dryRun {
		result.DryRunPreview = e.executeDryRunPreview(execCtx, kept, job.DryRunOptions)
	} else if err := e.executeOutputWithResult(ctx, execCtx, kept, result); err != nil {
		return fail(err)
	}

	e.finalizeSuccessWithMetrics(execCtx, result, startedAt)
	return result, nil
}

// newErrorResult creates a new ExecutionResult initialized with error status.
func (e *Executor) newErrorResult(startedAt time.Time) *dump.ExecutionResult {
	return &dump.ExecutionResult{
		ExecutionID: uuid.NewString(),
		StartedAt:   startedAt,
		Status:      StatusError,
	}
}

// buildExecutionError creates an ExecutionError with the classified category.
func buildExecutionError(code, module string, err error) *dump.ExecutionError {
	classified := errhandling.ClassifyError(err)
	ex := &dump.ExecutionError{
		Code:          code,
		Message:       err.Error(),
		Module:        module,
		ErrorCategory: string(classified.Category),
	}
	if classified.Path != "" {
		ex.Details = map[string]interface{}{"path": classified.Path}
	}
	return ex
}

// validateExecution validates the job and modules before execution.
func (e *Executor) validateExecution(job *dump.Job, result *dump.ExecutionResult) error {
	var err error
	module := ""
	switch {
	case job == nil:
		err = ErrNilJob
	case e.inputModule == nil:
		err, module = ErrNilInputModule, "input"
	case e.outputModule == nil && !e.dryRun:
		err, module = ErrNilOutputModule, "output"
	default:
		return nil
	}

	logger.Error("job execution failed", slog.String("error", err.Error()))
	result.CompletedAt = time.Now()
	result.Error = buildExecutionError(ErrCodeInvalidInput, module, errhandling.NewConfigurationError(err.Error(), err))
	return err
}

// checkDestination fails when the output module would write over the input file.
func (e *Executor) checkDestination() error {
	src, ok := e.inputModule.(input.Locator)
	if !ok || e.outputModule == nil {
		return nil
	}
	dst, ok := e.outputModule.(output.Locator)
	if !ok {
		return nil
	}

	same, err := pathutil.SameFile(src.Location(), dst.Location())
	if err != nil || !same {
		return nil
	}
	return errhandling.NewOutputAccessError(dst.Location(), "refusing to overwrite the source document", ErrOverwritesSource)
}

func (e *Executor) checkCanceled(ctx context.Context, result *dump.ExecutionResult) error {
	if err := ctx.Err(); err != nil {
		result.Error = buildExecutionError(ErrCodeCanceled, "", err)
		return err
	}
	return nil
}

// moduleCloser interface for modules that can be closed.
type moduleCloser interface {
	Close() error
}

// closeModule closes a module and logs any error.
func (e *Executor) closeModule(execCtx logger.ExecutionContext, moduleName string, m moduleCloser) {
	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		logger.Warn("failed to close module",
			slog.String("job_id", execCtx.JobID),
			slog.String("module", moduleName),
			slog.String("error", err.Error()),
		)
	}
}

// executeInput executes the input module and returns the source lines.
func (e *Executor) executeInput(ctx context.Context, execCtx logger.ExecutionContext, result *dump.ExecutionResult) ([]string, error) {
	stageCtx := execCtx
	stageCtx.Stage = "input"
	logger.LogStageStart(stageCtx)

	startTime := time.Now()
	lines, err := e.inputModule.Fetch(ctx)
	result.Timings.Input = time.Since(startTime)

	if err != nil {
		result.Error = buildExecutionError(ErrCodeInputFailed, "input", err)
		logger.LogStageEnd(stageCtx, 0, result.Timings.Input, &logger.ExecutionError{
			Code:     ErrCodeInputFailed,
			Message:  err.Error(),
			Category: result.Error.ErrorCategory,
		})
		return nil, fmt.Errorf("executing input module: %w", err)
	}

	logger.LogStageEnd(stageCtx, len(lines), result.Timings.Input, nil)
	return lines, nil
}

// executeFilters runs all filter modules in sequence on the given lines.
func (e *Executor) executeFilters(ctx context.Context, execCtx logger.ExecutionContext, lines []string) filterResult {
	current := lines
	for i, filterModule := range e.filterModules {
		stageCtx := execCtx
		stageCtx.Stage = "filter"
		stageCtx.FilterIndex = i

		if filterModule == nil {
			logger.WithExecution(stageCtx).Warn("nil filter module encountered; skipping",
				slog.Int("input_lines", len(current)),
			)
			continue
		}

		startTime := time.Now()
		next, err := filterModule.Process(ctx, current)
		if err != nil {
			logger.WithExecution(stageCtx).Error("filter module execution failed",
				slog.Duration("duration", time.Since(startTime)),
				slog.String("error", err.Error()),
			)
			return filterResult{err: err, errIdx: i}
		}

		logger.WithExecution(stageCtx).Debug("filter module completed",
			slog.Int("input_lines", len(current)),
			slog.Int("output_lines", len(next)),
			slog.Duration("duration", time.Since(startTime)),
		)
		current = next
	}
	return filterResult{lines: current, errIdx: -1}
}

// executeFiltersWithResult executes filter modules and updates result on error.
func (e *Executor) executeFiltersWithResult(ctx context.Context, execCtx logger.ExecutionContext, lines []string, result *dump.ExecutionResult) ([]string, error) {
	stageCtx := execCtx
	stageCtx.Stage = "filter"
	logger.LogStageStart(stageCtx)

	startTime := time.Now()
	res := e.executeFilters(ctx, execCtx, lines)
	result.Timings.Filter = time.Since(startTime)

	if res.err != nil {
		errMsg := fmt.Sprintf("filter module %d failed: %v", res.errIdx, res.err)
		result.Error = buildExecutionError(ErrCodeFilterFailed, "filter", res.err)
		result.Error.Message = errMsg
		if result.Error.Details == nil {
			result.Error.Details = map[string]interface{}{}
		}
		result.Error.Details["filterIndex"] = res.errIdx
		logger.LogStageEnd(stageCtx, len(lines), result.Timings.Filter, &logger.ExecutionError{
			Code:     ErrCodeFilterFailed,
			Message:  errMsg,
			Category: result.Error.ErrorCategory,
		})
		return nil, fmt.Errorf("executing filter module %d: %w", res.errIdx, res.err)
	}

	logger.LogStageEnd(stageCtx, len(res.lines), result.Timings.Filter, nil)
	return res.lines, nil
}

// executeOutputWithResult executes the output module and updates result.
func (e *Executor) executeOutputWithResult(ctx context.Context, execCtx logger.ExecutionContext, lines []string, result *dump.ExecutionResult) error {
	stageCtx := execCtx
	stageCtx.Stage = "output"
	logger.LogStageStart(stageCtx)

	startTime := time.Now()
	written, err := e.outputModule.Send(ctx, lines)
	result.Timings.Output = time.Since(startTime)

	if err != nil {
		result.Error = buildExecutionError(ErrCodeOutputFailed, "output", err)
		logger.LogStageEnd(stageCtx, len(lines), result.Timings.Output, &logger.ExecutionError{
			Code:     ErrCodeOutputFailed,
			Message:  err.Error(),
			Category: result.Error.ErrorCategory,
		})
		return fmt.Errorf("executing output module: %w", err)
	}

	if loc, ok := e.outputModule.(output.Locator); ok {
		result.Destination = loc.Location()
	}
	logger.LogStageEnd(stageCtx, written, result.Timings.Output, nil)
	return nil
}

// executeDryRunPreview describes the write the output module would perform.
// Returns nil if the output module is missing or doesn't implement PreviewableModule.
func (e *Executor) executeDryRunPreview(execCtx logger.ExecutionContext, lines []string, opts *dump.DryRunOptions) *dump.OutputPreview {
	if e.outputModule == nil {
		return nil
	}
	previewable, ok := e.outputModule.(output.PreviewableModule)
	if !ok {
		logger.Debug("output module does not implement PreviewableModule, skipping preview",
			slog.String("job_id", execCtx.JobID),
		)
		return nil
	}

	previewOpts := output.PreviewOptions{}
	if opts != nil {
		previewOpts.HeadLines = opts.PreviewLines
	}

	preview, err := previewable.Preview(lines, previewOpts)
	if err != nil {
		logger.Error("failed to generate dry-run preview",
			slog.String("job_id", execCtx.JobID),
			slog.Int("line_count", len(lines)),
			slog.String("error", err.Error()),
		)
		return &dump.OutputPreview{
			Destination: "[PREVIEW GENERATION FAILED]",
			LineCount:   len(lines),
		}
	}
	return preview
}

// finalizeSuccessWithMetrics marks the execution as successful and logs completion with metrics.
func (e *Executor) finalizeSuccessWithMetrics(execCtx logger.ExecutionContext, result *dump.ExecutionResult, startedAt time.Time) {
	result.Status = StatusSuccess
	result.CompletedAt = time.Now()
	result.Error = nil

	totalDuration := time.Since(startedAt)
	var linesPerSecond float64
	if result.LinesRead > 0 && totalDuration > 0 {
		linesPerSecond = float64(result.LinesRead) / totalDuration.Seconds()
	}

	logger.LogExecutionEnd(execCtx, StatusSuccess, result.LinesKept, totalDuration)
	logger.LogMetrics(execCtx, logger.ExecutionMetrics{
		TotalDuration:  totalDuration,
		InputDuration:  result.Timings.Input,
		FilterDuration: result.Timings.Filter,
		OutputDuration: result.Timings.Output,
		LinesRead:      result.LinesRead,
		LinesKept:      result.LinesKept,
		LinesDropped:   result.LinesDropped,
		LinesPerSecond: linesPerSecond,
	})
}
