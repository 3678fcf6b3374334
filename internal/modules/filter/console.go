// Console routes JavaScript console output to the logger.
package filter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/canectors/dumpfilter/internal/logger"
)

// MaxLogMessageLength is the maximum length of a single console message (8KB)
const MaxLogMessageLength = 8 * 1024

// jsConsole provides console.log/info/warn/error/debug for a Goja runtime.
type jsConsole struct {
	runtime *goja.Runtime
	lineIdx int
}

// newJSConsole creates a jsConsole and registers it as the runtime's console object.
func newJSConsole(runtime *goja.Runtime) (*jsConsole, error) {
	c := &jsConsole{runtime: runtime, lineIdx: -1}

	console := runtime.NewObject()
	for name, level := range map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"debug": slog.LevelDebug,
	} {
		if err := console.Set(name, c.method(level)); err != nil {
			return nil, fmt.Errorf("console.Set(%q): %w", name, err)
		}
	}
	if err := runtime.Set("console", console); err != nil {
		return nil, fmt.Errorf("runtime.Set(console): %w", err)
	}
	return c, nil
}

// SetLineIndex records the line being processed for log context.
func (c *jsConsole) SetLineIndex(idx int) {
	c.lineIdx = idx
}

// ClearLineIndex clears the line index after processing.
func (c *jsConsole) ClearLineIndex() {
	c.lineIdx = -1
}

func (c *jsConsole) method(level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		c.logWithLevel(level, call.Arguments)
		return goja.Undefined()
	}
}

func (c *jsConsole) logWithLevel(level slog.Level, args []goja.Value) {
	message := formatArgs(args)
	if len(message) > MaxLogMessageLength {
		message = message[:MaxLogMessageLength-3] + "..."
	}

	attrs := []any{
		slog.String("source", "javascript"),
		slog.String("module_type", "script"),
	}
	if c.lineIdx >= 0 {
		attrs = append(attrs, slog.Int("line_index", c.lineIdx))
	}

	switch level {
	case slog.LevelDebug:
		logger.Debug(message, attrs...)
	case slog.LevelWarn:
		logger.Warn(message, attrs...)
	case slog.LevelError:
		logger.Error(message, attrs...)
	default:
		logger.Info(message, attrs...)
	}
}

// formatArgs joins arguments with spaces the way console.log does.
func formatArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, formatValue(arg))
	}
	return strings.Join(parts, " ")
}

// formatValue renders strings and primitives as-is and objects as JSON.
// Values that cannot be serialized (cycles, functions) fall back to their JS string form.
func formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}
	if _, ok := val.(*goja.Object); !ok {
		return val.String()
	}
	if _, isFunc := goja.AssertFunction(val); isFunc {
		return "[Function]"
	}

	data, err := json.Marshal(val.Export())
	if err != nil {
		return val.String()
	}
	return string(data)
}
