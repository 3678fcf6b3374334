package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/canectors/dumpfilter/pkg/dump"
)

func successResult() *dump.ExecutionResult {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &dump.ExecutionResult{
		ExecutionID:  "exec-1",
		JobID:        "filter-sp",
		Status:       "success",
		StartedAt:    started,
		CompletedAt:  started.Add(time.Second),
		LinesRead:    4,
		LinesKept:    3,
		LinesDropped: 1,
		Destination:  "rodovias_sp_filtered.sql",
	}
}

func TestPrintExecutionResult_Success(t *testing.T) {
	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, successResult(), nil, OutputOptions{})

	want := "Filtered file created: rodovias_sp_filtered.sql\nTotal lines: 3\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
}

func TestPrintExecutionResult_Quiet(t *testing.T) {
	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, successResult(), nil, OutputOptions{Quiet: true})

	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("quiet mode printed stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestPrintExecutionResult_VerboseKeepsStdoutSummary(t *testing.T) {
	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, successResult(), nil, OutputOptions{Verbose: true})

	if got := strings.Count(stdout.String(), "\n"); got != 2 {
		t.Errorf("stdout has %d lines, want 2: %q", got, stdout.String())
	}
	for _, want := range []string{"Execution: exec-1", "Lines read: 4", "Lines dropped: 1", "Duration: 1s"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr missing %q: %q", want, stderr.String())
		}
	}
}

func TestPrintExecutionResult_Failure(t *testing.T) {
	result := &dump.ExecutionResult{
		Status: "error",
		Error: &dump.ExecutionError{
			Code:          "INPUT_FAILED",
			Message:       "file not found",
			Module:        "input",
			ErrorCategory: "input_access",
		},
	}
	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, result, errors.New("boom"), OutputOptions{})

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	for _, want := range []string{"Filter run failed", "Module: input", "Category: input_access", "Error: file not found"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr missing %q: %q", want, stderr.String())
		}
	}
}

func TestPrintExecutionResult_FailureWithoutDetails(t *testing.T) {
	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, &dump.ExecutionResult{}, errors.New("boom"), OutputOptions{})

	if !strings.Contains(stderr.String(), "Error: boom") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestPrintExecutionResult_NilResult(t *testing.T) {
	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, nil, nil, OutputOptions{})

	if !strings.Contains(stderr.String(), "No execution result") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestPrintDryRunPreview(t *testing.T) {
	result := successResult()
	result.DryRunPreview = &dump.OutputPreview{
		Destination: "out.sql",
		LineCount:   5,
		ByteCount:   42,
		Head:        []string{"-- header", "INSERT INTO public.rodovias VALUES (1,'SP');"},
	}

	var stdout, stderr bytes.Buffer
	PrintExecutionResult(&stdout, &stderr, result, nil, OutputOptions{DryRun: true})

	out := stdout.String()
	for _, want := range []string{"nothing was written", "Destination: out.sql", "Lines: 5", "    -- header", "(3 more lines)"} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Filtered file created") {
		t.Errorf("dry-run must not print the summary:\n%s", out)
	}
	if strings.Contains(out, "Bytes:") {
		t.Errorf("byte count is verbose only:\n%s", out)
	}
}

func TestPrintDryRunPreview_Nil(t *testing.T) {
	var buf bytes.Buffer
	PrintDryRunPreview(&buf, nil, false)
	if !strings.Contains(buf.String(), "No preview available") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ação ação ação", 8, "ação ..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestPrintJobSummary(t *testing.T) {
	data := map[string]interface{}{
		"schemaVersion": "1.0.0",
		"job": map[string]interface{}{
			"name":        "SP roads",
			"description": "Keep SP rows",
			"filters":     []interface{}{map[string]interface{}{"type": "insertFilter"}},
		},
	}
	var buf bytes.Buffer
	PrintJobSummary(&buf, data)

	for _, want := range []string{"Job: SP roads", "Description: Keep SP rows", "Filters: 1", "Schema version: 1.0.0"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("summary missing %q: %q", want, buf.String())
		}
	}

	buf.Reset()
	PrintJobSummary(&buf, nil)
	PrintJobSummary(&buf, map[string]interface{}{"job": "not a map"})
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
