// Package dump provides public types for dump filtering jobs.
// This package is intended to be importable by external projects that need
// to drive the dumpfilter runtime or inspect its results.
package dump

import "time"

// Job represents a complete dump filtering job.
// It contains the modules (Input, Filters, Output) and metadata
// required to turn a source dump into a filtered one.
type Job struct {
	// ID is the unique identifier for this job
	ID string `json:"id"`

	// Name is the human-readable name of the job
	Name string `json:"name"`

	// Description provides additional context about the job
	Description string `json:"description,omitempty"`

	// Input defines the source document module
	Input *ModuleConfig `json:"input"`

	// Filters is an ordered list of line filter modules
	Filters []ModuleConfig `json:"filters,omitempty"`

	// Output defines the destination document module
	Output *ModuleConfig `json:"output"`

	// DryRunOptions configures dry-run mode behavior
	DryRunOptions *DryRunOptions `json:"dryRunOptions,omitempty"`
}

// ModuleConfig represents the configuration for a job module.
type ModuleConfig struct {
	// Type identifies the module type (e.g., "file", "insertFilter", "condition")
	Type string `json:"type"`

	// Config contains the module-specific configuration
	Config map[string]interface{} `json:"config"`
}

// DryRunOptions configures dry-run mode behavior.
type DryRunOptions struct {
	// PreviewLines is the number of kept lines shown in the preview (0 uses the module default)
	PreviewLines int `json:"previewLines,omitempty"`
}

// ExecutionResult represents the result of a job execution.
type ExecutionResult struct {
	// ExecutionID uniquely identifies this run
	ExecutionID string `json:"executionId"`

	// JobID is the ID of the executed job
	JobID string `json:"jobId"`

	// Status is the execution status ("success", "error")
	Status string `json:"status"`

	// StartedAt is when execution started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when execution completed
	CompletedAt time.Time `json:"completedAt"`

	// LinesRead is the number of lines in the source document
	LinesRead int `json:"linesRead"`

	// LinesKept is the number of lines written to the destination
	LinesKept int `json:"linesKept"`

	// LinesDropped is the number of lines removed by filters
	LinesDropped int `json:"linesDropped"`

	// Destination is the location the output module wrote to
	Destination string `json:"destination,omitempty"`

	// Error contains error details if execution failed
	Error *ExecutionError `json:"error,omitempty"`

	// DryRunPreview describes what would have been written (only set in dry-run mode)
	DryRunPreview *OutputPreview `json:"dryRunPreview,omitempty"`

	// Timings holds the duration of each stage that ran
	Timings StageTimings `json:"timings"`
}

// StageTimings holds per-stage wall-clock durations.
type StageTimings struct {
	Input  time.Duration `json:"input"`
	Filter time.Duration `json:"filter"`
	Output time.Duration `json:"output"`
}

// Duration returns the wall-clock time of the execution.
func (r *ExecutionResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// OutputPreview contains the preview of a write that would be performed.
type OutputPreview struct {
	// Destination is the resolved output location
	Destination string `json:"destination"`

	// LineCount is the number of lines that would be written
	LineCount int `json:"lineCount"`

	// ByteCount is the size of the document that would be written
	ByteCount int `json:"byteCount"`

	// Head holds the first lines of the document
	Head []string `json:"head,omitempty"`
}

// ExecutionError contains details about an execution failure.
type ExecutionError struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Module is the module where the error occurred
	Module string `json:"module,omitempty"`

	// ErrorCategory is the classified category (input_access, output_access, decoding, ...)
	ErrorCategory string `json:"errorCategory,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}
