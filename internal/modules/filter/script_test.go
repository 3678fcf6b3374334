package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/canectors/dumpfilter/internal/logger"
)

func mustScript(t *testing.T, config ScriptConfig) *ScriptModule {
	t.Helper()
	m, err := NewScriptFromConfig(config)
	if err != nil {
		t.Fatalf("NewScriptFromConfig() error = %v", err)
	}
	return m
}

func TestScriptKeep(t *testing.T) {
	m := mustScript(t, ScriptConfig{Script: `
		function keep(line, stmt) {
			if (stmt === null) return true;
			if (stmt.table !== "public.rodovias") return true;
			var uf = stmt.columns.indexOf("uf");
			for (var i = 0; i < stmt.rows.length; i++) {
				if (stmt.rows[i][uf] === "SP") return true;
			}
			return false;
		}
	`})

	input := []string{
		"-- header",
		"INSERT INTO public.rodovias (id, uf) VALUES (1, 'SP');",
		"INSERT INTO public.rodovias (id, uf) VALUES (2, 'RJ');",
		"INSERT INTO public.outra VALUES (3);",
	}
	got, err := m.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := []string{input[0], input[1], input[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestScriptTruthyResult(t *testing.T) {
	m := mustScript(t, ScriptConfig{Script: `function keep(line) { return line.length; }`})
	got, err := m.Process(context.Background(), []string{"", "x"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if want := []string{"x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestScriptConstructionErrors(t *testing.T) {
	tests := []struct {
		name     string
		config   ScriptConfig
		wantCode string
	}{
		{"empty", ScriptConfig{Script: "  \n"}, ErrCodeScriptEmpty},
		{"too long", ScriptConfig{Script: "function keep(){return true}" + strings.Repeat(" ", MaxScriptLength)}, ErrCodeScriptTooLong},
		{"syntax error", ScriptConfig{Script: "function keep( {"}, ErrCodeCompilationFailed},
		{"missing keep", ScriptConfig{Script: "function transform(r) { return r; }"}, ErrCodeMissingKeep},
		{"keep not a function", ScriptConfig{Script: "var keep = 1;"}, ErrCodeNotFunction},
		{"both sources", ScriptConfig{Script: "x", ScriptFile: "y.js"}, ErrCodeInvalidScriptFile},
		{"path traversal", ScriptConfig{ScriptFile: "../keep.js"}, ErrCodeInvalidScriptFile},
		{"missing file", ScriptConfig{ScriptFile: "does-not-exist.js"}, ErrCodeScriptFileReadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScriptFromConfig(tt.config)
			var scriptErr *ScriptError
			if !errors.As(err, &scriptErr) {
				t.Fatalf("error = %v, want *ScriptError", err)
			}
			if scriptErr.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", scriptErr.Code, tt.wantCode)
			}
		})
	}
}

func TestScriptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.js")
	if err := os.WriteFile(path, []byte(`function keep(line) { return line.indexOf("SP") >= 0; }`), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	m := mustScript(t, ScriptConfig{ScriptFile: path})
	got, err := m.Process(context.Background(), []string{"SP", "RJ"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if want := []string{"SP"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Process() = %q, want %q", got, want)
	}

	big := filepath.Join(dir, "big.js")
	if err := os.WriteFile(big, bytes.Repeat([]byte(" "), MaxScriptLength+1), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if _, err := NewScriptFromConfig(ScriptConfig{ScriptFile: big}); !errors.Is(err, ErrScriptTooLong) {
		t.Errorf("error = %v, want ErrScriptTooLong", err)
	}
}

func TestScriptOnError(t *testing.T) {
	source := `function keep(line) { if (line === "bad") throw new Error("boom"); return true; }`
	lines := []string{"ok", "bad", "fine"}

	t.Run("fail", func(t *testing.T) {
		m := mustScript(t, ScriptConfig{Script: source})
		_, err := m.Process(context.Background(), lines)
		var scriptErr *ScriptError
		if !errors.As(err, &scriptErr) {
			t.Fatalf("error = %v, want *ScriptError", err)
		}
		if scriptErr.LineIndex != 1 || !strings.Contains(scriptErr.Message, "boom") {
			t.Errorf("ScriptError = %+v", scriptErr)
		}
	})

	t.Run("skip", func(t *testing.T) {
		m := mustScript(t, ScriptConfig{Script: source, OnError: OnErrorSkip})
		got, err := m.Process(context.Background(), lines)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if want := []string{"ok", "fine"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Process() = %q, want %q", got, want)
		}
	})

	t.Run("log", func(t *testing.T) {
		m := mustScript(t, ScriptConfig{Script: source, OnError: OnErrorLog})
		got, err := m.Process(context.Background(), lines)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if !reflect.DeepEqual(got, lines) {
			t.Errorf("Process() = %q, want %q", got, lines)
		}
	})

	t.Run("undefined result is an error", func(t *testing.T) {
		m := mustScript(t, ScriptConfig{Script: `function keep(line) {}`})
		if _, err := m.Process(context.Background(), []string{"x"}); err == nil {
			t.Error("expected error for undefined result")
		}
	})
}

func TestScriptCancellationInterruptsLoop(t *testing.T) {
	m := mustScript(t, ScriptConfig{Script: `function keep(line) { while (true) {} }`})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.Process(ctx, []string{"x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestParseScriptConfig(t *testing.T) {
	cfg, err := ParseScriptConfig(map[string]interface{}{"script": "function keep(){return true}", "onError": "skip"})
	if err != nil {
		t.Fatalf("ParseScriptConfig() error = %v", err)
	}
	if cfg.OnError != "skip" || cfg.Script == "" {
		t.Errorf("ParseScriptConfig() = %+v", cfg)
	}

	invalid := []map[string]interface{}{
		{},
		{"script": 1},
		{"scriptFile": true},
		{"script": "a", "scriptFile": "b"},
	}
	for _, raw := range invalid {
		if _, err := ParseScriptConfig(raw); err == nil {
			t.Errorf("ParseScriptConfig(%v) expected error", raw)
		}
	}
}

func TestScriptConsole(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(nil) })

	m := mustScript(t, ScriptConfig{Script: `
		function keep(line) {
			console.warn("checking", line, {n: 1}, [1, 2]);
			return true;
		}
	`})
	if _, err := m.Process(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	var entries []map[string]interface{}
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		if err := json.Unmarshal(raw, &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", raw, err)
		}
		if entry["source"] == "javascript" {
			entries = append(entries, entry)
		}
	}
	if len(entries) != 2 {
		t.Fatalf("got %d console entries, want 2", len(entries))
	}
	if entries[0]["msg"] != `checking a {"n":1} [1,2]` {
		t.Errorf("msg = %v", entries[0]["msg"])
	}
	if entries[0]["level"] != "WARN" || entries[1]["line_index"] != float64(1) {
		t.Errorf("entries = %v", entries)
	}
}
