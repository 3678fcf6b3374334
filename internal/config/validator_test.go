package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustJSON(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		t.Fatalf("bad test JSON: %v", err)
	}
	return data
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	result := ValidateConfig(ParseJSONFile("testdata/valid-job.json").Data)
	if !result.Valid {
		t.Errorf("expected valid config, got errors: %v", result.Errors)
	}
}

func TestValidateConfig_NilAndEmpty(t *testing.T) {
	if result := ValidateConfig(nil); result.Valid || !strings.Contains(result.Errors[0].Message, "nil") {
		t.Errorf("nil data should be invalid, got %+v", result)
	}
	if result := ValidateConfig(map[string]interface{}{}); result.Valid || !strings.Contains(result.Errors[0].Message, "empty") {
		t.Errorf("empty data should be invalid, got %+v", result)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantPath string
		wantType string
	}{
		{
			name:     "missing job",
			doc:      `{"schemaVersion": "1.0.0"}`,
			wantPath: "/",
			wantType: "required",
		},
		{
			name:     "unsupported schema version",
			doc:      `{"schemaVersion": "2.0.0", "job": {"name": "x"}}`,
			wantPath: "/schemaVersion",
			wantType: "pattern",
		},
		{
			name:     "missing job name",
			doc:      `{"schemaVersion": "1.0.0", "job": {}}`,
			wantPath: "/job",
			wantType: "required",
		},
		{
			name:     "unknown job field",
			doc:      `{"schemaVersion": "1.0.0", "job": {"name": "x", "schedule": "daily"}}`,
			wantPath: "/job",
			wantType: "additionalProperties",
		},
		{
			name:     "bad compression",
			doc:      `{"schemaVersion": "1.0.0", "job": {"name": "x", "input": {"type": "file", "compression": "zip"}}}`,
			wantPath: "/job/input/compression",
			wantType: "enum",
		},
		{
			name:     "tables must be a list",
			doc:      `{"schemaVersion": "1.0.0", "job": {"name": "x", "filters": [{"type": "insertFilter", "tables": "public.rodovias"}]}}`,
			wantPath: "/job/filters/0/tables",
			wantType: "type",
		},
		{
			name:     "condition needs expression",
			doc:      `{"schemaVersion": "1.0.0", "job": {"name": "x", "filters": [{"type": "condition"}]}}`,
			wantPath: "/job/filters/0",
			wantType: "required",
		},
		{
			name:     "negative preview lines",
			doc:      `{"schemaVersion": "1.0.0", "job": {"name": "x", "dryRunOptions": {"previewLines": -1}}}`,
			wantPath: "/job/dryRunOptions/previewLines",
			wantType: "range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateConfig(mustJSON(t, tt.doc))
			if result.Valid {
				t.Fatal("expected validation to fail")
			}
			for _, e := range result.Errors {
				if e.Path == tt.wantPath && e.Type == tt.wantType {
					return
				}
			}
			t.Errorf("no %s error at %s in %+v", tt.wantType, tt.wantPath, result.Errors)
		})
	}
}

func TestValidateConfig_UnknownModuleTypesAreAllowed(t *testing.T) {
	// Types are resolved by the registry, not the schema.
	doc := `{"schemaVersion": "1.0.0", "job": {"name": "x", "filters": [{"type": "customFilter", "anything": 1}]}}`
	if result := ValidateConfig(mustJSON(t, doc)); !result.Valid {
		t.Errorf("expected valid config, got %v", result.Errors)
	}
}

func TestValidationError_Error(t *testing.T) {
	if got := (ValidationError{Path: "/job", Message: "missing property 'name'"}).Error(); got != "/job: missing property 'name'" {
		t.Errorf("Error() = %q", got)
	}
	if got := (ValidationError{Message: "bad"}).Error(); got != "bad" {
		t.Errorf("Error() = %q", got)
	}
}

func TestGetEmbeddedSchema(t *testing.T) {
	schema := GetEmbeddedSchema()
	if len(schema) == 0 {
		t.Fatal("embedded schema is empty")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(schema, &doc); err != nil {
		t.Fatalf("embedded schema is not JSON: %v", err)
	}
	if _, err := getCompiledSchema(); err != nil {
		t.Fatalf("embedded schema does not compile: %v", err)
	}
}
