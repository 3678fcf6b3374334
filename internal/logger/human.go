package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxInlineAttrs caps how many attributes are printed on one human log line.
const maxInlineAttrs = 6

// HumanHandlerOptions configures the human-readable log handler.
type HumanHandlerOptions struct {
	// Level is the minimum log level to output
	Level slog.Level
	// UseColors enables colored level glyphs (auto-detected by the package setters)
	UseColors bool
}

// HumanHandler is a slog handler that outputs human-readable log messages.
type HumanHandler struct {
	opts   HumanHandlerOptions
	writer io.Writer
	styles levelStyles
	attrs  []slog.Attr
	groups []string
}

type levelStyles struct {
	err, warn, ok, info, debug lipgloss.Style
}

func newLevelStyles(w io.Writer) levelStyles {
	r := lipgloss.NewRenderer(w)
	return levelStyles{
		err:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("2")),
		info:  r.NewStyle().Foreground(lipgloss.Color("6")),
		debug: r.NewStyle().Faint(true),
	}
}

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(w io.Writer, opts *HumanHandlerOptions) *HumanHandler {
	if opts == nil {
		opts = &HumanHandlerOptions{Level: slog.LevelInfo}
	}
	return &HumanHandler{
		opts:   *opts,
		writer: w,
		styles: newLevelStyles(w),
	}
}

// Enabled returns true if the handler is enabled for the given level.
func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle outputs a log record in human-readable format.
func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(r.Time.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(h.levelPrefix(r.Level, r.Message))
	sb.WriteString(" ")
	sb.WriteString(r.Message)

	keyAttrs := make([]string, 0, len(h.attrs)+r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		keyAttrs = append(keyAttrs, h.formatAttr(a))
		return true
	})
	for _, a := range h.attrs {
		keyAttrs = append(keyAttrs, h.formatAttr(a))
	}

	if len(keyAttrs) > 0 {
		inline := keyAttrs
		if len(inline) > maxInlineAttrs {
			inline = inline[:maxInlineAttrs]
		}
		sb.WriteString(" ")
		sb.WriteString(strings.Join(inline, " "))
		if len(keyAttrs) > maxInlineAttrs {
			fmt.Fprintf(&sb, " (+%d more)", len(keyAttrs)-maxInlineAttrs)
		}
	}

	sb.WriteString("\n")
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &HumanHandler{
		opts:   h.opts,
		writer: h.writer,
		styles: h.styles,
		attrs:  merged,
		groups: h.groups,
	}
}

// WithGroup returns a new handler with the given group name.
func (h *HumanHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	return &HumanHandler{
		opts:   h.opts,
		writer: h.writer,
		styles: h.styles,
		attrs:  h.attrs,
		groups: append(groups, name),
	}
}

// levelPrefix returns the glyph for a level, using ✓ for completion messages.
func (h *HumanHandler) levelPrefix(level slog.Level, message string) string {
	lower := strings.ToLower(message)
	isSuccess := strings.Contains(lower, "completed") || strings.Contains(lower, "success")

	var prefix string
	var style lipgloss.Style
	switch {
	case level >= slog.LevelError:
		prefix, style = "✗", h.styles.err
	case level >= slog.LevelWarn:
		prefix, style = "⚠", h.styles.warn
	case level >= slog.LevelInfo && isSuccess:
		prefix, style = "✓", h.styles.ok
	case level >= slog.LevelInfo:
		prefix, style = "ℹ", h.styles.info
	default:
		prefix, style = "·", h.styles.debug
	}

	if h.opts.UseColors {
		return style.Render(prefix)
	}
	return prefix
}

// formatAttr formats a single attribute for display.
func (h *HumanHandler) formatAttr(a slog.Attr) string {
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	switch v := a.Value.Any().(type) {
	case time.Duration:
		return fmt.Sprintf("%s=%s", key, formatDuration(v))
	case float64:
		return fmt.Sprintf("%s=%.2f", key, v)
	default:
		return fmt.Sprintf("%s=%v", key, v)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
