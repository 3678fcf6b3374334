package config

import (
	"fmt"

	"github.com/canectors/dumpfilter/pkg/dump"
)

// ConvertToJob converts a validated job document to a Job.
//
// The document is expected to have this structure:
//
//	{
//	  "schemaVersion": "1.0.0",
//	  "job": {
//	    "name": "...",
//	    "input": {"type": "file", "path": "..."},
//	    "filters": [{"type": "insertFilter", ...}],
//	    "output": {"type": "file", "path": "..."}
//	  }
//	}
//
// Omitted input, filters and output sections take the default job's modules.
// An explicit empty filters list keeps every line.
func ConvertToJob(data map[string]interface{}) (*dump.Job, error) {
	if data == nil {
		return nil, fmt.Errorf("job document is nil")
	}
	jobData, ok := data["job"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'job' section")
	}

	name, ok := jobData["name"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required field 'job.name'")
	}

	defaults := DefaultJob()
	job := &dump.Job{
		ID:      name,
		Name:    name,
		Input:   defaults.Input,
		Filters: defaults.Filters,
		Output:  defaults.Output,
	}
	if id, ok := jobData["id"].(string); ok {
		job.ID = id
	}
	if description, ok := jobData["description"].(string); ok {
		job.Description = description
	}

	if raw, present := jobData["input"]; present {
		inputData, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid 'job.input' section")
		}
		inputConfig, err := convertModuleConfig(inputData)
		if err != nil {
			return nil, fmt.Errorf("invalid input config: %w", err)
		}
		job.Input = inputConfig
	}

	if raw, present := jobData["filters"]; present {
		filtersData, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid 'job.filters' section")
		}
		job.Filters = make([]dump.ModuleConfig, 0, len(filtersData))
		for i, filterData := range filtersData {
			filterMap, ok := filterData.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("invalid filter at index %d", i)
			}
			filterConfig, err := convertModuleConfig(filterMap)
			if err != nil {
				return nil, fmt.Errorf("invalid filter at index %d: %w", i, err)
			}
			job.Filters = append(job.Filters, *filterConfig)
		}
	}

	if raw, present := jobData["output"]; present {
		outputData, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid 'job.output' section")
		}
		outputConfig, err := convertModuleConfig(outputData)
		if err != nil {
			return nil, fmt.Errorf("invalid output config: %w", err)
		}
		job.Output = outputConfig
	}

	if dryRunData, ok := jobData["dryRunOptions"].(map[string]interface{}); ok {
		job.DryRunOptions = &dump.DryRunOptions{PreviewLines: toInt(dryRunData["previewLines"])}
	}

	return job, nil
}

// convertModuleConfig turns a raw module map into a ModuleConfig.
// Every key except "type" becomes a module option.
func convertModuleConfig(data map[string]interface{}) (*dump.ModuleConfig, error) {
	moduleType, ok := data["type"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required field 'type'")
	}

	moduleConfig := &dump.ModuleConfig{
		Type:   moduleType,
		Config: make(map[string]interface{}, len(data)),
	}
	for key, value := range data {
		if key != "type" {
			moduleConfig.Config[key] = value
		}
	}
	return moduleConfig, nil
}

// toInt accepts the number types produced by encoding/json and yaml.v3.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
