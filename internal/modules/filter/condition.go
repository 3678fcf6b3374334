// Condition module keeps or drops lines based on an expression.
package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/sqldump"
)

// Error codes for condition module
const (
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluationFailed  = "EVALUATION_FAILED"
	ErrCodeUnsupportedLang   = "UNSUPPORTED_LANG"
)

// Common errors for condition module
var (
	// ErrInvalidExpression is returned when the expression syntax is invalid
	ErrInvalidExpression = errors.New("invalid expression syntax")
	// ErrUnsupportedLang is returned when the language is not supported
	ErrUnsupportedLang = errors.New("unsupported expression language")
)

// LangSimple is the expr-lang expression language, the only one supported.
const LangSimple = "simple"

// Routing behavior constants
const (
	OnConditionContinue = "continue"
	OnConditionSkip     = "skip"
)

// ConditionConfig represents the configuration for a condition filter module.
type ConditionConfig struct {
	// Expression is the condition expression string (required)
	Expression string `json:"expression"`
	// Lang is the expression language: "simple" (default)
	Lang string `json:"lang,omitempty"`
	// OnTrue specifies behavior when condition is true: "continue" (default) or "skip"
	OnTrue string `json:"onTrue,omitempty"`
	// OnFalse specifies behavior when condition is false: "continue" or "skip" (default)
	OnFalse string `json:"onFalse,omitempty"`
	// OnError specifies error handling mode: "fail" (default), "skip", "log"
	OnError string `json:"onError,omitempty"`
	// Then is a nested filter applied to lines matching the condition (optional)
	Then *NestedModuleConfig `json:"then,omitempty"`
	// Else is a nested filter applied to lines not matching the condition (optional)
	Else *NestedModuleConfig `json:"else,omitempty"`
}

// NestedModuleConfig represents a nested filter module configuration.
type NestedModuleConfig struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// ConditionModule keeps or drops lines by evaluating an expression against each one.
//
// The expression sees these variables:
//   - line: the raw line
//   - trimmed: the line without surrounding whitespace
//   - isInsert: whether the line is an INSERT INTO statement
//   - table, columns, rows: the parsed statement (empty when not an INSERT or unparsable)
//   - value(column): the first row's value for a column, "" if absent
//   - index: the 0-based line index
type ConditionModule struct {
	expression string
	onTrue     string
	onFalse    string
	onError    string
	program    *vm.Program
	thenModule Module
	elseModule Module
}

// ConditionError carries structured context for condition evaluation failures.
type ConditionError struct {
	Code       string
	Message    string
	Expression string
	LineIndex  int
}

func (e *ConditionError) Error() string {
	return e.Message
}

// ParseConditionConfig parses a condition filter configuration from raw config.
func ParseConditionConfig(cfg map[string]interface{}) (ConditionConfig, error) {
	config := ConditionConfig{}
	expression, ok := cfg["expression"].(string)
	if !ok {
		return config, fmt.Errorf("field 'expression' is required and must be a string")
	}
	config.Expression = expression
	config.Lang, _ = cfg["lang"].(string)
	config.OnTrue, _ = cfg["onTrue"].(string)
	config.OnFalse, _ = cfg["onFalse"].(string)
	config.OnError, _ = cfg["onError"].(string)

	var err error
	if config.Then, err = parseNested(cfg["then"]); err != nil {
		return config, fmt.Errorf("field 'then': %w", err)
	}
	if config.Else, err = parseNested(cfg["else"]); err != nil {
		return config, fmt.Errorf("field 'else': %w", err)
	}
	return config, nil
}

func parseNested(raw interface{}) (*NestedModuleConfig, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("must be an object")
	}
	moduleType, ok := m["type"].(string)
	if !ok || moduleType == "" {
		return nil, fmt.Errorf("'type' is required")
	}
	nested := &NestedModuleConfig{Type: moduleType}
	if cfg, ok := m["config"].(map[string]interface{}); ok {
		nested.Config = cfg
		return nested, nil
	}
	// Options may also sit next to "type", like top-level filters.
	nested.Config = make(map[string]interface{}, len(m))
	for k, v := range m {
		if k != "type" {
			nested.Config[k] = v
		}
	}
	return nested, nil
}

// NewConditionFromConfig creates a new condition filter module from configuration.
// It validates the configuration and returns an error if invalid.
func NewConditionFromConfig(config ConditionConfig) (*ConditionModule, error) {
	lang := config.Lang
	if lang == "" {
		lang = LangSimple
	}
	if lang != LangSimple {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLang, lang)
	}

	onTrue, err := routing(config.OnTrue, OnConditionContinue)
	if err != nil {
		return nil, fmt.Errorf("onTrue: %w", err)
	}
	onFalse, err := routing(config.OnFalse, OnConditionSkip)
	if err != nil {
		return nil, fmt.Errorf("onFalse: %w", err)
	}

	onError, valid := normalizeOnError(config.OnError)
	if !valid {
		logger.Warn("invalid onError value for condition module; defaulting to fail",
			slog.String("on_error", config.OnError),
		)
	}

	// An empty expression is always true.
	var program *vm.Program
	if strings.TrimSpace(config.Expression) != "" {
		program, err = expr.Compile(config.Expression, expr.Env(lineEnv("", 0)), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
		}
	}

	var thenModule, elseModule Module
	if config.Then != nil {
		thenModule, err = createNestedModule(config.Then)
		if err != nil {
			return nil, fmt.Errorf("failed to create 'then' module: %w", err)
		}
	}
	if config.Else != nil {
		elseModule, err = createNestedModule(config.Else)
		if err != nil {
			return nil, fmt.Errorf("failed to create 'else' module: %w", err)
		}
	}

	logger.Debug("condition module initialized",
		slog.String("expression", config.Expression),
		slog.String("on_true", onTrue),
		slog.String("on_false", onFalse),
		slog.String("on_error", onError),
		slog.Bool("has_then", thenModule != nil),
		slog.Bool("has_else", elseModule != nil),
	)

	return &ConditionModule{
		expression: config.Expression,
		onTrue:     onTrue,
		onFalse:    onFalse,
		onError:    onError,
		program:    program,
		thenModule: thenModule,
		elseModule: elseModule,
	}, nil
}

func routing(value, fallback string) (string, error) {
	switch value {
	case "":
		return fallback, nil
	case OnConditionContinue, OnConditionSkip:
		return value, nil
	default:
		return "", fmt.Errorf("must be %q or %q, got %q", OnConditionContinue, OnConditionSkip, value)
	}
}

// NestedModuleCreator builds nested then/else modules. The factory package
// sets it so nested blocks resolve through the module registry; when nil,
// only insertFilter and condition are available.
var NestedModuleCreator func(config *NestedModuleConfig) (Module, error)

// createNestedModule creates a filter module from nested configuration.
func createNestedModule(config *NestedModuleConfig) (Module, error) {
	if NestedModuleCreator != nil {
		return NestedModuleCreator(config)
	}
	switch config.Type {
	case "insertFilter":
		parsed, err := ParseInsertConfig(config.Config)
		if err != nil {
			return nil, err
		}
		return NewInsertFilterFromConfig(parsed)
	case "condition":
		parsed, err := ParseConditionConfig(config.Config)
		if err != nil {
			return nil, err
		}
		return NewConditionFromConfig(parsed)
	default:
		return nil, fmt.Errorf("unsupported nested module type: %s", config.Type)
	}
}

// Process filters lines based on the condition expression.
// For each line:
//  1. Evaluates the expression
//  2. If true and a 'then' module exists, the line goes through it, else onTrue applies
//  3. If false and an 'else' module exists, the line goes through it, else onFalse applies
func (c *ConditionModule) Process(ctx context.Context, lines []string) ([]string, error) {
	startTime := time.Now()
	result := make([]string, 0, len(lines))

	for idx, line := range lines {
		if err := canceled(ctx, idx); err != nil {
			return nil, err
		}

		matched, err := c.evaluate(line, idx)
		if err == nil {
			var kept []string
			kept, err = c.route(ctx, matched, line)
			if err == nil {
				result = append(result, kept...)
				continue
			}
		}

		switch c.onError {
		case OnErrorSkip:
			logger.Warn("skipping line due to condition error",
				slog.Int("line_index", idx),
				slog.String("expression", c.expression),
				slog.String("error", err.Error()),
			)
		case OnErrorLog:
			logger.Error("condition error (keeping line)",
				slog.Int("line_index", idx),
				slog.String("expression", c.expression),
				slog.String("error", err.Error()),
			)
			result = append(result, line)
		default:
			return nil, err
		}
	}

	logger.Debug("filter processing completed",
		slog.String("module_type", "condition"),
		slog.Int("input_lines", len(lines)),
		slog.Int("output_lines", len(result)),
		slog.Duration("duration", time.Since(startTime)),
	)
	return result, nil
}

func (c *ConditionModule) evaluate(line string, idx int) (bool, error) {
	if c.program == nil {
		return true, nil
	}
	output, err := expr.Run(c.program, lineEnv(line, idx))
	if err != nil {
		return false, &ConditionError{
			Code:       ErrCodeEvaluationFailed,
			Message:    fmt.Sprintf("condition evaluation failed at line %d: %v", idx, err),
			Expression: c.expression,
			LineIndex:  idx,
		}
	}
	return toBool(output), nil
}

func (c *ConditionModule) route(ctx context.Context, matched bool, line string) ([]string, error) {
	next, behavior := c.elseModule, c.onFalse
	if matched {
		next, behavior = c.thenModule, c.onTrue
	}
	if next != nil {
		return next.Process(ctx, []string{line})
	}
	if behavior == OnConditionContinue {
		return []string{line}, nil
	}
	return nil, nil
}

// lineEnv builds the expression environment for one line.
func lineEnv(line string, idx int) map[string]interface{} {
	env := map[string]interface{}{
		"line":     line,
		"trimmed":  strings.TrimSpace(line),
		"isInsert": false,
		"table":    "",
		"columns":  []string{},
		"rows":     [][]string{},
		"index":    idx,
	}

	var stmt *sqldump.Statement
	if sqldump.IsInsert(line) {
		env["isInsert"] = true
		if parsed, err := sqldump.Parse(line); err == nil {
			stmt = parsed
			env["table"] = stmt.Table
			env["columns"] = stmt.Columns
			env["rows"] = stmt.TextRows()
		}
	}

	env["value"] = func(column string) string {
		if stmt == nil {
			return ""
		}
		values, ok := stmt.ColumnValues(column)
		if !ok || len(values) == 0 {
			return ""
		}
		return values[0].Text
	}
	return env
}

// toBool converts a value to boolean.
func toBool(value interface{}) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

var _ Module = (*ConditionModule)(nil)
