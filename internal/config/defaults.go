package config

import (
	"github.com/canectors/dumpfilter/internal/modules/input"
	"github.com/canectors/dumpfilter/internal/modules/output"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// DefaultJobID identifies the built-in job.
const DefaultJobID = "filter-sp"

// DefaultJob returns the built-in job: read rodovias_sp_full.sql, keep
// rodovias and segmento_rodovia inserts only when they mention 'SP', and
// write rodovias_sp_filtered.sql.
func DefaultJob() *dump.Job {
	return &dump.Job{
		ID:          DefaultJobID,
		Name:        "Filter SP highway data",
		Description: "Keeps rodovias and segmento_rodovia inserts for the state of SP",
		Input: &dump.ModuleConfig{
			Type:   "file",
			Config: map[string]interface{}{"path": input.DefaultPath},
		},
		Filters: []dump.ModuleConfig{
			{Type: "insertFilter", Config: map[string]interface{}{}},
		},
		Output: &dump.ModuleConfig{
			Type:   "file",
			Config: map[string]interface{}{"path": output.DefaultPath},
		},
	}
}

// OverridePaths replaces the input and output file paths of a job.
// Empty values leave the job unchanged. A module whose type is not "file"
// is replaced by a file module, since a path only makes sense for files.
func OverridePaths(job *dump.Job, inputPath, outputPath string) {
	if inputPath != "" {
		job.Input = withPath(job.Input, inputPath)
	}
	if outputPath != "" {
		job.Output = withPath(job.Output, outputPath)
	}
}

func withPath(cfg *dump.ModuleConfig, path string) *dump.ModuleConfig {
	if cfg == nil || cfg.Type != "file" {
		return &dump.ModuleConfig{Type: "file", Config: map[string]interface{}{"path": path}}
	}
	updated := make(map[string]interface{}, len(cfg.Config)+1)
	for k, v := range cfg.Config {
		updated[k] = v
	}
	updated["path"] = path
	return &dump.ModuleConfig{Type: cfg.Type, Config: updated}
}
