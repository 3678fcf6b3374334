package sqldump

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsInsert(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"plain insert", "INSERT INTO public.rodovias VALUES (1);", true},
		{"leading whitespace", "   \tINSERT INTO t VALUES (1);", true},
		{"lowercase is not an insert", "insert into t values (1);", false},
		{"comment", "-- INSERT INTO t VALUES (1);", false},
		{"empty", "", false},
		{"create table", "CREATE TABLE public.rodovias (id integer);", false},
		{"trailing carriage return", "INSERT INTO t VALUES (1);\r", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInsert(tt.line))
		})
	}
}

func TestInsertsInto(t *testing.T) {
	line := "INSERT INTO public.segmento_rodovia VALUES (1, 'SP');"
	assert.True(t, InsertsInto(line, "public.segmento_rodovia"))
	assert.False(t, InsertsInto(line, "public.rodovias"))
	assert.False(t, InsertsInto(line, "segmento_rodovia"))
}

func TestParse(t *testing.T) {
	t.Run("column list and multiple rows", func(t *testing.T) {
		stmt, err := Parse("INSERT INTO public.rodovias (id, uf, nome) VALUES (1, 'SP', 'Anhanguera'), (2, 'RJ', NULL);")
		require.NoError(t, err)

		assert.Equal(t, "public.rodovias", stmt.Table)
		assert.Equal(t, []string{"id", "uf", "nome"}, stmt.Columns)
		require.Len(t, stmt.Rows, 2)
		assert.Equal(t, Value{Raw: "1", Text: "1"}, stmt.Rows[0][0])
		assert.Equal(t, Value{Raw: "'SP'", Text: "SP", Quoted: true}, stmt.Rows[0][1])
		assert.True(t, stmt.Rows[1][2].Null)
	})

	t.Run("no column list", func(t *testing.T) {
		stmt, err := Parse("INSERT INTO public.outra VALUES (3);")
		require.NoError(t, err)
		assert.Equal(t, "public.outra", stmt.Table)
		assert.Empty(t, stmt.Columns)
		assert.Equal(t, [][]string{{"3"}}, stmt.TextRows())
	})

	t.Run("quoted identifiers", func(t *testing.T) {
		stmt, err := Parse(`INSERT INTO "public"."Rodovias" ("UF", "say ""hi""") VALUES ('SP', 'x');`)
		require.NoError(t, err)
		assert.Equal(t, "public.Rodovias", stmt.Table)
		assert.Equal(t, []string{"UF", `say "hi"`}, stmt.Columns)
	})

	t.Run("escaped quotes and separators inside strings", func(t *testing.T) {
		stmt, err := Parse("INSERT INTO t (a, b) VALUES ('d''Oeste, SP', 'x)y');")
		require.NoError(t, err)
		assert.Equal(t, "d'Oeste, SP", stmt.Rows[0][0].Text)
		assert.Equal(t, "x)y", stmt.Rows[0][1].Text)
	})

	t.Run("E strings honour backslash escapes", func(t *testing.T) {
		stmt, err := Parse(`INSERT INTO t VALUES (E'a\'b\nc');`)
		require.NoError(t, err)
		assert.Equal(t, "a'b\nc", stmt.Rows[0][0].Text)
	})

	t.Run("function call values", func(t *testing.T) {
		stmt, err := Parse("INSERT INTO t (geom, uf) VALUES (ST_GeomFromText('POINT(1 2)', 4326), 'SP');")
		require.NoError(t, err)
		assert.Equal(t, "ST_GeomFromText('POINT(1 2)', 4326)", stmt.Rows[0][0].Raw)
		assert.Equal(t, "SP", stmt.Rows[0][1].Text)
	})

	t.Run("trailing clause is ignored", func(t *testing.T) {
		stmt, err := Parse("INSERT INTO t VALUES (1) ON CONFLICT DO NOTHING;")
		require.NoError(t, err)
		assert.Len(t, stmt.Rows, 1)
	})

	t.Run("not an insert", func(t *testing.T) {
		_, err := Parse("SELECT 1;")
		assert.ErrorIs(t, err, ErrNotInsert)
	})
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing values", "INSERT INTO t (a) SELECT 1;"},
		{"unterminated string", "INSERT INTO t VALUES ('SP);"},
		{"unterminated tuple", "INSERT INTO t VALUES (1, 2"},
		{"empty value", "INSERT INTO t VALUES (1, , 2);"},
		{"broken column list", "INSERT INTO t (a b) VALUES (1);"},
		{"missing table", "INSERT INTO (a) VALUES (1);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr), "want *SyntaxError, got %T", err)
		})
	}
}

func TestColumnValues(t *testing.T) {
	stmt, err := Parse("INSERT INTO public.rodovias (id, UF) VALUES (1, 'RJ'), (2, 'SP');")
	require.NoError(t, err)

	assert.Equal(t, 1, stmt.ColumnIndex("uf"))
	assert.Equal(t, -1, stmt.ColumnIndex("nome"))

	values, ok := stmt.ColumnValues("uf")
	require.True(t, ok)
	require.Len(t, values, 2)
	assert.Equal(t, "RJ", values[0].Text)
	assert.Equal(t, "SP", values[1].Text)

	_, ok = stmt.ColumnValues("nome")
	assert.False(t, ok)
}
