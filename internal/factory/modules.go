// Package factory provides module creation functions for the job runtime.
// It centralizes the logic for instantiating input, filter, and output modules
// from their configuration using the module registry.
//
// To add a new module type, see the documentation in internal/registry.
// The factory does not need to change; register the constructor instead.
package factory

import (
	"errors"
	"fmt"

	"github.com/canectors/dumpfilter/internal/modules/filter"
	"github.com/canectors/dumpfilter/internal/modules/input"
	"github.com/canectors/dumpfilter/internal/modules/output"
	"github.com/canectors/dumpfilter/internal/registry"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// maxNestingDepth is the maximum allowed depth for nested condition blocks.
const maxNestingDepth = 50

// ErrUnknownModuleType is returned when no constructor is registered for a type.
var ErrUnknownModuleType = errors.New("unknown module type")

func init() {
	filter.NestedModuleCreator = CreateFilterModuleFromNestedConfig
}

// CreateInputModule creates an input module instance from configuration.
// Returns nil without error for a nil configuration.
func CreateInputModule(cfg *dump.ModuleConfig) (input.Module, error) {
	if cfg == nil {
		return nil, nil
	}
	constructor := registry.GetInputConstructor(cfg.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w for input: %q", ErrUnknownModuleType, cfg.Type)
	}
	return constructor(cfg)
}

// CreateFilterModules creates filter module instances from configuration, in order.
func CreateFilterModules(cfgs []dump.ModuleConfig) ([]filter.Module, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	modules := make([]filter.Module, 0, len(cfgs))
	for i, cfg := range cfgs {
		module, err := createSingleFilterModule(cfg, i)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// createSingleFilterModule creates a single filter module based on its type.
func createSingleFilterModule(cfg dump.ModuleConfig, index int) (filter.Module, error) {
	if depth := nestingDepth(cfg.Config, 0); depth > maxNestingDepth {
		return nil, fmt.Errorf("filter at index %d: nested module depth %d exceeds maximum %d", index, depth, maxNestingDepth)
	}

	constructor := registry.GetFilterConstructor(cfg.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w for filter at index %d: %q", ErrUnknownModuleType, index, cfg.Type)
	}
	return constructor(cfg, index)
}

// nestingDepth returns how deep then/else blocks are nested in a condition config.
func nestingDepth(cfg map[string]interface{}, depth int) int {
	if depth > maxNestingDepth {
		return depth
	}
	deepest := depth
	for _, key := range []string{"then", "else"} {
		nested, ok := cfg[key].(map[string]interface{})
		if !ok {
			continue
		}
		inner, _ := nested["config"].(map[string]interface{})
		if d := nestingDepth(inner, depth+1); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// CreateOutputModule creates an output module instance from configuration.
// Returns nil without error for a nil configuration.
func CreateOutputModule(cfg *dump.ModuleConfig) (output.Module, error) {
	if cfg == nil {
		return nil, nil
	}
	constructor := registry.GetOutputConstructor(cfg.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w for output: %q", ErrUnknownModuleType, cfg.Type)
	}
	return constructor(cfg)
}

// CreateFilterModuleFromNestedConfig creates a filter module from a nested
// then/else configuration using the registry, so every registered filter
// type can be used inside a condition.
func CreateFilterModuleFromNestedConfig(nestedConfig *filter.NestedModuleConfig) (filter.Module, error) {
	if nestedConfig == nil {
		return nil, nil
	}
	constructor := registry.GetFilterConstructor(nestedConfig.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w for nested filter: %q", ErrUnknownModuleType, nestedConfig.Type)
	}
	config := nestedConfig.Config
	if config == nil {
		config = map[string]interface{}{}
	}
	return constructor(dump.ModuleConfig{Type: nestedConfig.Type, Config: config}, 0)
}

// Modules holds the modules built for one job.
type Modules struct {
	Input   input.Module
	Filters []filter.Module
	Output  output.Module
}

// CreateJobModules builds every module of a job. On failure, modules that
// were already created are closed.
func CreateJobModules(job *dump.Job) (*Modules, error) {
	if job == nil {
		return nil, errors.New("job configuration is nil")
	}

	in, err := CreateInputModule(job.Input)
	if err != nil {
		return nil, fmt.Errorf("creating input module: %w", err)
	}
	filters, err := CreateFilterModules(job.Filters)
	if err != nil {
		closeQuietly(in)
		return nil, fmt.Errorf("creating filter modules: %w", err)
	}
	out, err := CreateOutputModule(job.Output)
	if err != nil {
		closeQuietly(in)
		return nil, fmt.Errorf("creating output module: %w", err)
	}
	return &Modules{Input: in, Filters: filters, Output: out}, nil
}

func closeQuietly(m interface{ Close() error }) {
	if m != nil {
		_ = m.Close()
	}
}
