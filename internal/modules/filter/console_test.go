package filter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dop251/goja"

	"github.com/canectors/dumpfilter/internal/logger"
)

func TestJSConsoleMethods(t *testing.T) {
	vm := goja.New()
	if _, err := newJSConsole(vm); err != nil {
		t.Fatalf("newJSConsole: %v", err)
	}

	for _, method := range []string{"log", "info", "warn", "error", "debug"} {
		if _, err := vm.RunString(`console.` + method + `("hello", 1)`); err != nil {
			t.Errorf("console.%s failed: %v", method, err)
		}
	}
}

func TestFormatValue(t *testing.T) {
	vm := goja.New()
	eval := func(src string) goja.Value {
		t.Helper()
		v, err := vm.RunString(src)
		if err != nil {
			t.Fatalf("RunString(%q): %v", src, err)
		}
		return v
	}

	tests := []struct {
		src  string
		want string
	}{
		{`undefined`, "undefined"},
		{`null`, "null"},
		{`"text"`, "text"},
		{`42`, "42"},
		{`true`, "true"},
		{`({a: "b"})`, `{"a":"b"}`},
		{`[1, "x", null]`, `[1,"x",null]`},
		{`(function f() {})`, "[Function]"},
	}
	for _, tt := range tests {
		if got := formatValue(eval(tt.src)); got != tt.want {
			t.Errorf("formatValue(%s) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestJSConsoleTruncatesLongMessages(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(nil) })

	vm := goja.New()
	if _, err := newJSConsole(vm); err != nil {
		t.Fatalf("newJSConsole: %v", err)
	}
	if _, err := vm.RunString(`console.log("x".repeat(9000))`); err != nil {
		t.Fatalf("console.log failed: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid log output %q: %v", buf.String(), err)
	}
	msg, _ := entry["msg"].(string)
	if len(msg) != MaxLogMessageLength || !strings.HasSuffix(msg, "...") {
		t.Errorf("message length = %d, want %d ending in ...", len(msg), MaxLogMessageLength)
	}
}
