package dump_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/canectors/dumpfilter/pkg/dump"
)

func TestJobJSONSerialization(t *testing.T) {
	job := dump.Job{
		ID:   "rodovias-sp",
		Name: "Rodovias SP",
		Input: &dump.ModuleConfig{
			Type:   "file",
			Config: map[string]interface{}{"path": "rodovias_sp_full.sql"},
		},
		Filters: []dump.ModuleConfig{
			{Type: "insertFilter", Config: map[string]interface{}{"contains": "'SP'"}},
		},
		Output: &dump.ModuleConfig{
			Type:   "file",
			Config: map[string]interface{}{"path": "rodovias_sp_filtered.sql"},
		},
		DryRunOptions: &dump.DryRunOptions{PreviewLines: 5},
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Failed to marshal job: %v", err)
	}

	var decoded dump.Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal job: %v", err)
	}

	if decoded.ID != job.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, job.ID)
	}
	if decoded.Input == nil || decoded.Input.Type != "file" {
		t.Errorf("Input = %+v, want file module", decoded.Input)
	}
	if len(decoded.Filters) != 1 || decoded.Filters[0].Type != "insertFilter" {
		t.Errorf("Filters = %+v", decoded.Filters)
	}
	if decoded.DryRunOptions == nil || decoded.DryRunOptions.PreviewLines != 5 {
		t.Errorf("DryRunOptions = %+v", decoded.DryRunOptions)
	}
}

func TestExecutionResultDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("completed execution", func(t *testing.T) {
		result := dump.ExecutionResult{StartedAt: start, CompletedAt: start.Add(1500 * time.Millisecond)}
		if got := result.Duration(); got != 1500*time.Millisecond {
			t.Errorf("Duration() = %v, want 1.5s", got)
		}
	})

	t.Run("not completed", func(t *testing.T) {
		result := dump.ExecutionResult{StartedAt: start}
		if got := result.Duration(); got != 0 {
			t.Errorf("Duration() = %v, want 0", got)
		}
	})
}

func TestExecutionResultOmitsEmptyError(t *testing.T) {
	result := dump.ExecutionResult{ExecutionID: "e1", JobID: "j1", Status: "success", LinesKept: 3}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Failed to marshal result: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if _, ok := raw["error"]; ok {
		t.Error("error should be omitted on success")
	}
	if _, ok := raw["dryRunPreview"]; ok {
		t.Error("dryRunPreview should be omitted outside dry-run")
	}
	if raw["linesKept"] != float64(3) {
		t.Errorf("linesKept = %v, want 3", raw["linesKept"])
	}
}
