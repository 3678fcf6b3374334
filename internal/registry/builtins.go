package registry

import (
	"fmt"

	"github.com/canectors/dumpfilter/internal/modules/filter"
	"github.com/canectors/dumpfilter/internal/modules/input"
	"github.com/canectors/dumpfilter/internal/modules/output"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// Built-in module type names.
const (
	TypeFile         = "file"
	TypeInsertFilter = "insertFilter"
	TypeCondition    = "condition"
	TypeScript       = "script"
)

func init() {
	RegisterBuiltins()
}

// registerBuiltinInputModules registers all built-in input module types.
func registerBuiltinInputModules() {
	RegisterInput(TypeFile, func(cfg *dump.ModuleConfig) (input.Module, error) {
		if cfg == nil {
			return nil, nil
		}
		return input.NewFileFromConfig(cfg)
	})
}

// registerBuiltinFilterModules registers all built-in filter module types.
func registerBuiltinFilterModules() {
	// insertFilter - keeps INSERT lines for selected tables only when they carry a marker
	RegisterFilter(TypeInsertFilter, func(cfg dump.ModuleConfig, index int) (filter.Module, error) {
		insertConfig, err := filter.ParseInsertConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid insertFilter config at index %d: %w", index, err)
		}
		module, err := filter.NewInsertFilterFromConfig(insertConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid insertFilter config at index %d: %w", index, err)
		}
		return module, nil
	})

	// condition - expression based routing, with optional nested then/else modules
	RegisterFilter(TypeCondition, func(cfg dump.ModuleConfig, index int) (filter.Module, error) {
		condConfig, err := filter.ParseConditionConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid condition config at index %d: %w", index, err)
		}
		module, err := filter.NewConditionFromConfig(condConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid condition config at index %d: %w", index, err)
		}
		return module, nil
	})

	// script - JavaScript keep(line, stmt) predicate using Goja
	RegisterFilter(TypeScript, func(cfg dump.ModuleConfig, index int) (filter.Module, error) {
		scriptConfig, err := filter.ParseScriptConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid script config at index %d: %w", index, err)
		}
		module, err := filter.NewScriptFromConfig(scriptConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid script config at index %d: %w", index, err)
		}
		return module, nil
	})
}

// registerBuiltinOutputModules registers all built-in output module types.
func registerBuiltinOutputModules() {
	RegisterOutput(TypeFile, func(cfg *dump.ModuleConfig) (output.Module, error) {
		if cfg == nil {
			return nil, nil
		}
		return output.NewFileFromConfig(cfg)
	})
}
