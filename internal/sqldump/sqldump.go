// Package sqldump inspects single lines of a plain-text SQL dump.
//
// It recognises INSERT statements and, when asked, parses them into the
// target table, the optional column list and the row values. Only the subset
// of SQL that dump tools emit on one line is understood:
//
//	INSERT INTO schema.table (col_a, col_b) VALUES ('x', 1), ('y', NULL);
package sqldump

import (
	"errors"
	"fmt"
	"strings"
)

// InsertPrefix is the statement prefix that marks a data line.
const InsertPrefix = "INSERT INTO"

// ErrNotInsert is returned by Parse for lines that are not INSERT statements.
var ErrNotInsert = errors.New("line is not an INSERT statement")

// IsInsert reports whether the line, ignoring surrounding whitespace,
// starts with INSERT INTO. The match is case-sensitive.
func IsInsert(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), InsertPrefix)
}

// InsertsInto reports whether the line contains "INSERT INTO <table>" anywhere.
// Table is matched as written, so "public.rodovias" does not match "rodovias".
func InsertsInto(line, table string) bool {
	return strings.Contains(line, InsertPrefix+" "+table)
}

// Value is a single literal from a VALUES tuple.
type Value struct {
	// Raw is the literal as written in the statement
	Raw string
	// Text is the unquoted, unescaped content for strings and Raw otherwise
	Text string
	// Quoted is true for string literals
	Quoted bool
	// Null is true for the NULL keyword
	Null bool
}

// Statement is a parsed INSERT statement.
type Statement struct {
	// Table is the target table with identifier quotes removed (e.g. public.rodovias)
	Table string
	// Columns is the explicit column list, empty when the statement has none
	Columns []string
	// Rows holds one slice of values per VALUES tuple
	Rows [][]Value
}

// ColumnIndex returns the position of a column in the column list, or -1.
// Names are compared case-insensitively.
func (s *Statement) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// ColumnValues returns the value of a column for every row.
// The second result is false when the column is not in the column list.
func (s *Statement) ColumnValues(name string) ([]Value, bool) {
	idx := s.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]Value, 0, len(s.Rows))
	for _, row := range s.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		}
	}
	return values, true
}

// TextRows returns the Text of every value, row by row.
func (s *Statement) TextRows() [][]string {
	rows := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		texts := make([]string, len(row))
		for j, v := range row {
			texts[j] = v.Text
		}
		rows[i] = texts
	}
	return rows
}

// SyntaxError reports where parsing of an INSERT line stopped.
type SyntaxError struct {
	// Offset is the byte offset in the line
	Offset int
	// Msg describes what was expected
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sql syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Parse parses a single-line INSERT statement.
// Anything after the last VALUES tuple (a semicolon, ON CONFLICT clauses) is ignored.
func Parse(line string) (*Statement, error) {
	if !IsInsert(line) {
		return nil, ErrNotInsert
	}

	p := &scanner{s: line}
	p.skipSpace()
	p.pos += len(InsertPrefix)

	table, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Table: table}

	p.skipSpace()
	if p.peek() == '(' {
		stmt.Columns, err = p.columnList()
		if err != nil {
			return nil, err
		}
	}

	p.skipSpace()
	if !p.keyword("VALUES") {
		return nil, p.errorf("expected VALUES")
	}

	for {
		row, err := p.tuple()
		if err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)

		p.skipSpace()
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	return stmt, nil
}

type scanner struct {
	s   string
	pos int
}

func (p *scanner) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *scanner) eof() bool {
	return p.pos >= len(p.s)
}

func (p *scanner) peek() byte {
	if p.eof() {
		return 0
	}
	return p.s[p.pos]
}

func (p *scanner) skipSpace() {
	for !p.eof() {
		switch p.s[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

// keyword consumes kw (case-insensitive) if it appears as a whole word at the cursor.
func (p *scanner) keyword(kw string) bool {
	end := p.pos + len(kw)
	if end > len(p.s) || !strings.EqualFold(p.s[p.pos:end], kw) {
		return false
	}
	if end < len(p.s) && isIdentByte(p.s[end]) {
		return false
	}
	p.pos = end
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c >= 0x80
}

// identifier reads a bare or double-quoted identifier.
func (p *scanner) identifier() (string, error) {
	p.skipSpace()
	if p.peek() == '"' {
		p.pos++
		var sb strings.Builder
		for !p.eof() {
			c := p.s[p.pos]
			p.pos++
			if c != '"' {
				sb.WriteByte(c)
				continue
			}
			if p.peek() == '"' {
				sb.WriteByte('"')
				p.pos++
				continue
			}
			return sb.String(), nil
		}
		return "", p.errorf("unterminated quoted identifier")
	}

	start := p.pos
	for !p.eof() && isIdentByte(p.s[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", p.errorf("expected identifier")
	}
	return p.s[start:p.pos], nil
}

func (p *scanner) qualifiedName() (string, error) {
	parts := make([]string, 0, 2)
	for {
		part, err := p.identifier()
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
		if p.peek() != '.' {
			return strings.Join(parts, "."), nil
		}
		p.pos++
	}
}

func (p *scanner) columnList() ([]string, error) {
	p.pos++ // (
	var columns []string
	for {
		col, err := p.identifier()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return columns, nil
		default:
			return nil, p.errorf("expected ',' or ')' in column list")
		}
	}
}

func (p *scanner) tuple() ([]Value, error) {
	p.skipSpace()
	if p.peek() != '(' {
		return nil, p.errorf("expected '(' to open VALUES tuple")
	}
	p.pos++

	var row []Value
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		row = append(row, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return row, nil
		default:
			return nil, p.errorf("expected ',' or ')' in VALUES tuple")
		}
	}
}

func (p *scanner) value() (Value, error) {
	p.skipSpace()
	start := p.pos

	switch c := p.peek(); {
	case c == '\'':
		text, err := p.quoted(false)
		if err != nil {
			return Value{}, err
		}
		return Value{Raw: p.s[start:p.pos], Text: text, Quoted: true}, nil
	case (c == 'E' || c == 'e') && p.pos+1 < len(p.s) && p.s[p.pos+1] == '\'':
		p.pos++
		text, err := p.quoted(true)
		if err != nil {
			return Value{}, err
		}
		return Value{Raw: p.s[start:p.pos], Text: text, Quoted: true}, nil
	}

	raw, err := p.bareValue()
	if err != nil {
		return Value{}, err
	}
	if strings.EqualFold(raw, "NULL") {
		return Value{Raw: raw, Null: true}, nil
	}
	return Value{Raw: raw, Text: raw}, nil
}

// quoted reads a single-quoted string literal. Doubled quotes are always an
// escaped quote; backslash escapes are honoured only for E'' strings.
func (p *scanner) quoted(backslash bool) (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for !p.eof() {
		c := p.s[p.pos]
		p.pos++
		switch {
		case c == '\\' && backslash && !p.eof():
			sb.WriteByte(unescape(p.s[p.pos]))
			p.pos++
		case c == '\'':
			if p.peek() == '\'' {
				sb.WriteByte('\'')
				p.pos++
				continue
			}
			return sb.String(), nil
		default:
			sb.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string literal")
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

// bareValue reads an unquoted literal or expression such as 42, true or
// ST_GeomFromText('POINT(1 2)', 4326) up to the next top-level ',' or ')'.
func (p *scanner) bareValue() (string, error) {
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.s[p.pos]
		switch c {
		case '\'':
			if _, err := p.quoted(false); err != nil {
				return "", err
			}
			continue
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return p.trimmedSince(start)
			}
			depth--
		case ',':
			if depth == 0 {
				return p.trimmedSince(start)
			}
		}
		p.pos++
	}
	return "", p.errorf("unterminated VALUES tuple")
}

func (p *scanner) trimmedSince(start int) (string, error) {
	raw := strings.TrimSpace(p.s[start:p.pos])
	if raw == "" {
		return "", p.errorf("empty value")
	}
	return raw, nil
}
