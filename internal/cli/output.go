// Package cli provides CLI output formatting and display functions.
// Summaries and previews go to stdout, failures go to stderr.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/canectors/dumpfilter/pkg/dump"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
}

// PrintExecutionResult displays the job execution result.
// A successful run prints exactly the two summary lines to stdout; extra
// detail requested with --verbose goes to stderr.
func PrintExecutionResult(stdout, stderr io.Writer, result *dump.ExecutionResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(stderr, "✗ No execution result available")
		return
	}

	if err != nil {
		fmt.Fprintln(stderr, "✗ Filter run failed")
		if result.Error != nil {
			if result.Error.Module != "" {
				fmt.Fprintf(stderr, "  Module: %s\n", result.Error.Module)
			}
			if result.Error.ErrorCategory != "" {
				fmt.Fprintf(stderr, "  Category: %s\n", result.Error.ErrorCategory)
			}
			fmt.Fprintf(stderr, "  Error: %s\n", result.Error.Message)
		} else {
			fmt.Fprintf(stderr, "  Error: %v\n", err)
		}
		return
	}

	if opts.Quiet {
		return
	}

	if opts.DryRun {
		PrintDryRunPreview(stdout, result.DryRunPreview, opts.Verbose)
	} else {
		PrintSummary(stdout, result)
	}

	if opts.Verbose {
		fmt.Fprintf(stderr, "  Execution: %s\n", result.ExecutionID)
		fmt.Fprintf(stderr, "  Lines read: %d\n", result.LinesRead)
		fmt.Fprintf(stderr, "  Lines dropped: %d\n", result.LinesDropped)
		fmt.Fprintf(stderr, "  Duration: %v\n", result.Duration())
	}
}

// PrintSummary prints the two-line run summary.
func PrintSummary(w io.Writer, result *dump.ExecutionResult) {
	fmt.Fprintf(w, "Filtered file created: %s\n", result.Destination)
	fmt.Fprintf(w, "Total lines: %d\n", result.LinesKept)
}

// PrintDryRunPreview displays what the output module would have written.
func PrintDryRunPreview(w io.Writer, preview *dump.OutputPreview, verbose bool) {
	fmt.Fprintln(w, "Dry-run preview (nothing was written):")
	if preview == nil {
		fmt.Fprintln(w, "  No preview available")
		return
	}

	fmt.Fprintf(w, "  Destination: %s\n", preview.Destination)
	fmt.Fprintf(w, "  Lines: %d\n", preview.LineCount)
	if verbose {
		fmt.Fprintf(w, "  Bytes: %d\n", preview.ByteCount)
	}

	if len(preview.Head) == 0 {
		return
	}
	fmt.Fprintln(w, "  First lines:")
	printIndentedLines(w, preview.Head, "    ", verbose)
	if remaining := preview.LineCount - len(preview.Head); remaining > 0 {
		fmt.Fprintf(w, "    ... (%d more lines)\n", remaining)
	}
}

// maxLineWidth is the width at which preview lines are cut unless verbose.
const maxLineWidth = 120

// printIndentedLines prints lines with indentation, shortening long ones.
func printIndentedLines(w io.Writer, lines []string, indent string, verbose bool) {
	for _, line := range lines {
		if !verbose {
			line = truncate(line, maxLineWidth)
		}
		fmt.Fprintf(w, "%s%s\n", indent, line)
	}
}

// truncate shortens s to at most width runes, ending with "...".
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

// PrintJobSummary prints the job name and description from a parsed job file.
func PrintJobSummary(w io.Writer, data map[string]interface{}) {
	if data == nil {
		return
	}

	job, ok := data["job"].(map[string]interface{})
	if !ok {
		return
	}

	if name, ok := job["name"].(string); ok {
		fmt.Fprintf(w, "  Job: %s\n", name)
	}
	if desc, ok := job["description"].(string); ok && strings.TrimSpace(desc) != "" {
		fmt.Fprintf(w, "  Description: %s\n", desc)
	}
	if filters, ok := job["filters"].([]interface{}); ok {
		fmt.Fprintf(w, "  Filters: %d\n", len(filters))
	}
	if version, ok := data["schemaVersion"].(string); ok {
		fmt.Fprintf(w, "  Schema version: %s\n", version)
	}
}
