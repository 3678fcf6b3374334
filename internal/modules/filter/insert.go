package filter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/sqldump"
)

// Defaults for the insert filter.
var (
	// DefaultTables are the tables whose INSERT lines are filtered
	DefaultTables = []string{"public.rodovias", "public.segmento_rodovia"}
	// DefaultMarker is the substring a filtered INSERT line must contain to be kept
	DefaultMarker = "'SP'"
)

// InsertConfig represents the configuration for an insert filter module.
type InsertConfig struct {
	// Tables lists the schema-qualified tables to filter (default DefaultTables)
	Tables []string `json:"tables,omitempty"`
	// Contains is the marker substring (default DefaultMarker)
	Contains string `json:"contains,omitempty"`
	// Column, when set, matches the marker against this column's values instead of the whole line
	Column string `json:"column,omitempty"`
}

// InsertFilter keeps every line except INSERT statements into the configured
// tables that do not reference the marker.
//
// A line is kept when:
//  1. its trimmed text does not start with INSERT INTO, or
//  2. it contains none of "INSERT INTO <table>" for the configured tables, or
//  3. it contains the marker (or, with Column set, a row has the marker in that column).
type InsertFilter struct {
	tables      []string
	marker      string
	column      string
	columnValue string
}

// ParseInsertConfig parses an insert filter configuration from raw config.
func ParseInsertConfig(cfg map[string]interface{}) (InsertConfig, error) {
	config := InsertConfig{}
	if raw, ok := cfg["tables"]; ok && raw != nil {
		tables, ok := stringSlice(raw)
		if !ok {
			return config, fmt.Errorf("field 'tables' must be a list of strings")
		}
		config.Tables = tables
	}
	if raw, ok := cfg["contains"]; ok && raw != nil {
		contains, ok := raw.(string)
		if !ok {
			return config, fmt.Errorf("field 'contains' must be a string")
		}
		config.Contains = contains
	}
	if raw, ok := cfg["column"]; ok && raw != nil {
		column, ok := raw.(string)
		if !ok {
			return config, fmt.Errorf("field 'column' must be a string")
		}
		config.Column = column
	}
	return config, nil
}

// NewInsertFilterFromConfig creates a new insert filter module from configuration.
// Empty fields fall back to the defaults.
func NewInsertFilterFromConfig(config InsertConfig) (*InsertFilter, error) {
	tables := make([]string, 0, len(config.Tables))
	for _, table := range config.Tables {
		table = strings.TrimSpace(table)
		if table == "" {
			return nil, fmt.Errorf("insert filter: table names cannot be empty")
		}
		tables = append(tables, table)
	}
	if len(tables) == 0 {
		tables = append(tables, DefaultTables...)
	}

	marker := config.Contains
	if marker == "" {
		marker = DefaultMarker
	}

	f := &InsertFilter{
		tables:      tables,
		marker:      marker,
		column:      strings.TrimSpace(config.Column),
		columnValue: strings.Trim(marker, "'"),
	}

	logger.Debug("insert filter module initialized",
		slog.Any("tables", tables),
		slog.String("contains", marker),
		slog.String("column", f.column),
	)
	return f, nil
}

// Keep reports whether a single line survives the filter.
func (f *InsertFilter) Keep(line string) bool {
	if !sqldump.IsInsert(line) {
		return true
	}
	if !f.targets(line) {
		return true
	}
	if f.column != "" {
		if keep, ok := f.keepByColumn(line); ok {
			return keep
		}
	}
	return strings.Contains(line, f.marker)
}

func (f *InsertFilter) targets(line string) bool {
	for _, table := range f.tables {
		if sqldump.InsertsInto(line, table) {
			return true
		}
	}
	return false
}

// keepByColumn matches the marker against a column's values. The second
// result is false when the statement or the column cannot be located.
func (f *InsertFilter) keepByColumn(line string) (bool, bool) {
	stmt, err := sqldump.Parse(line)
	if err != nil {
		logger.Debug("insert filter falling back to substring match",
			slog.String("reason", err.Error()),
		)
		return false, false
	}
	values, ok := stmt.ColumnValues(f.column)
	if !ok {
		logger.Debug("insert filter falling back to substring match",
			slog.String("reason", "column not in statement"),
			slog.String("column", f.column),
			slog.String("table", stmt.Table),
		)
		return false, false
	}
	for _, v := range values {
		if !v.Null && v.Text == f.columnValue {
			return true, true
		}
	}
	return false, true
}

// Process returns the lines that survive the filter, in order.
func (f *InsertFilter) Process(ctx context.Context, lines []string) ([]string, error) {
	startTime := time.Now()
	result := make([]string, 0, len(lines))

	for idx, line := range lines {
		if err := canceled(ctx, idx); err != nil {
			return nil, err
		}
		if f.Keep(line) {
			result = append(result, line)
		}
	}

	logger.Debug("filter processing completed",
		slog.String("module_type", "insertFilter"),
		slog.Int("input_lines", len(lines)),
		slog.Int("output_lines", len(result)),
		slog.Duration("duration", time.Since(startTime)),
	)
	return result, nil
}

var _ Module = (*InsertFilter)(nil)
