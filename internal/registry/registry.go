// Package registry provides module registries for input, filter, and output modules.
//
// Modules register their constructors by type string instead of being
// selected through hard-coded switch statements. A new module type only
// needs a constructor and a Register call:
//
//	func init() {
//	    registry.RegisterFilter("regexFilter", func(cfg dump.ModuleConfig, index int) (filter.Module, error) {
//	        return NewRegexFilter(cfg.Config)
//	    })
//	}
//
// Built-in modules (file input, insertFilter, condition, script, file output)
// are registered in builtins.go.
package registry

import (
	"sort"
	"sync"

	"github.com/canectors/dumpfilter/internal/modules/filter"
	"github.com/canectors/dumpfilter/internal/modules/input"
	"github.com/canectors/dumpfilter/internal/modules/output"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// InputConstructor creates an input module from configuration.
type InputConstructor func(cfg *dump.ModuleConfig) (input.Module, error)

// FilterConstructor creates a filter module from configuration.
// The index is the filter's position in the job, used in error messages.
type FilterConstructor func(cfg dump.ModuleConfig, index int) (filter.Module, error)

// OutputConstructor creates an output module from configuration.
type OutputConstructor func(cfg *dump.ModuleConfig) (output.Module, error)

var (
	inputMu       sync.RWMutex
	inputRegistry = make(map[string]InputConstructor)
)

var (
	filterMu       sync.RWMutex
	filterRegistry = make(map[string]FilterConstructor)
)

var (
	outputMu       sync.RWMutex
	outputRegistry = make(map[string]OutputConstructor)
)

// RegisterInput registers an input module constructor by type string.
// Registering an existing type overwrites the previous constructor.
func RegisterInput(moduleType string, constructor InputConstructor) {
	inputMu.Lock()
	defer inputMu.Unlock()
	inputRegistry[moduleType] = constructor
}

// RegisterFilter registers a filter module constructor by type string.
// Registering an existing type overwrites the previous constructor.
func RegisterFilter(moduleType string, constructor FilterConstructor) {
	filterMu.Lock()
	defer filterMu.Unlock()
	filterRegistry[moduleType] = constructor
}

// RegisterOutput registers an output module constructor by type string.
// Registering an existing type overwrites the previous constructor.
func RegisterOutput(moduleType string, constructor OutputConstructor) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outputRegistry[moduleType] = constructor
}

// GetInputConstructor returns the registered constructor for an input module type,
// or nil if none is registered.
func GetInputConstructor(moduleType string) InputConstructor {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return inputRegistry[moduleType]
}

// GetFilterConstructor returns the registered constructor for a filter module type,
// or nil if none is registered.
func GetFilterConstructor(moduleType string) FilterConstructor {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return filterRegistry[moduleType]
}

// GetOutputConstructor returns the registered constructor for an output module type,
// or nil if none is registered.
func GetOutputConstructor(moduleType string) OutputConstructor {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return outputRegistry[moduleType]
}

// ListInputTypes returns the registered input module types, sorted.
func ListInputTypes() []string {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return sortedKeys(inputRegistry)
}

// ListFilterTypes returns the registered filter module types, sorted.
func ListFilterTypes() []string {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return sortedKeys(filterRegistry)
}

// ListOutputTypes returns the registered output module types, sorted.
func ListOutputTypes() []string {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return sortedKeys(outputRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearRegistries removes all registered constructors.
// This is intended for testing purposes only.
func ClearRegistries() {
	inputMu.Lock()
	inputRegistry = make(map[string]InputConstructor)
	inputMu.Unlock()

	filterMu.Lock()
	filterRegistry = make(map[string]FilterConstructor)
	filterMu.Unlock()

	outputMu.Lock()
	outputRegistry = make(map[string]OutputConstructor)
	outputMu.Unlock()
}

// RegisterBuiltins (re)registers the built-in modules.
// It runs at package initialization; tests call it after ClearRegistries.
func RegisterBuiltins() {
	registerBuiltinInputModules()
	registerBuiltinFilterModules()
	registerBuiltinOutputModules()
}
