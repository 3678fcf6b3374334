package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSONFile parses a JSON job file.
func ParseJSONFile(path string) *ParseResult {
	return parseFile(path, FormatJSON)
}

// ParseYAMLFile parses a YAML job file.
func ParseYAMLFile(path string) *ParseResult {
	return parseFile(path, FormatYAML)
}

func parseFile(path, format string) *ParseResult {
	content, perr := readConfigFile(path)
	if perr != nil {
		return &ParseResult{FilePath: path, Format: format, Errors: []ParseError{*perr}}
	}

	var result *ParseResult
	if format == FormatYAML {
		result = ParseYAMLString(content)
	} else {
		result = ParseJSONString(content)
	}
	result.FilePath = path
	for i := range result.Errors {
		if result.Errors[i].Path == "" {
			result.Errors[i].Path = path
		}
	}
	return result
}

func readConfigFile(path string) (string, *ParseError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &ParseError{
			Path:    path,
			Message: fmt.Sprintf("failed to read file: %v", err),
			Type:    ErrorTypeIO,
		}
	}
	return string(content), nil
}

// ParseJSONString parses JSON content from a string.
func ParseJSONString(content string) *ParseResult {
	result := &ParseResult{Format: FormatJSON}

	content = strings.TrimSpace(content)
	if content == "" {
		result.Errors = append(result.Errors, ParseError{
			Message: "empty content: expected JSON object",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		result.Errors = append(result.Errors, jsonParseError(err, content))
		return result
	}
	return toDocument(result, data, "JSON object")
}

// ParseYAMLString parses YAML content from a string.
func ParseYAMLString(content string) *ParseResult {
	result := &ParseResult{Format: FormatYAML}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ParseError{
			Message: "empty content: expected YAML document",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		result.Errors = append(result.Errors, yamlParseError(err))
		return result
	}
	return toDocument(result, data, "YAML mapping")
}

// toDocument stores data in result when it is an object. A null document
// parses without error and leaves Data nil; validation rejects it.
func toDocument(result *ParseResult, data interface{}, want string) *ParseResult {
	if data == nil {
		return result
	}
	doc, ok := data.(map[string]interface{})
	if !ok {
		result.Errors = append(result.Errors, ParseError{
			Message: fmt.Sprintf("invalid job file: expected %s, got %T", want, data),
			Type:    ErrorTypeFormat,
		})
		return result
	}
	result.Data = doc
	return result
}

func jsonParseError(err error, content string) ParseError {
	parseErr := ParseError{Message: err.Error(), Type: ErrorTypeSyntax}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		parseErr.Offset = syntaxErr.Offset
		parseErr.Line, parseErr.Column = offsetToLineColumn(content, syntaxErr.Offset)
		parseErr.Message = fmt.Sprintf("JSON syntax error at offset %d: %s", syntaxErr.Offset, syntaxErr.Error())
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		parseErr.Offset = typeErr.Offset
		parseErr.Line, parseErr.Column = offsetToLineColumn(content, typeErr.Offset)
		parseErr.Message = fmt.Sprintf("type error at field '%s': expected %s, got %s",
			typeErr.Field, typeErr.Type.String(), typeErr.Value)
	}
	return parseErr
}

// offsetToLineColumn converts a byte offset to 1-based line and column numbers.
func offsetToLineColumn(content string, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

func yamlParseError(err error) ParseError {
	parseErr := ParseError{Message: err.Error(), Type: ErrorTypeSyntax}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		parseErr.Message = "YAML type error: " + strings.Join(typeErr.Errors, "; ")
	}
	// yaml.v3 messages look like "yaml: line 3: ..."
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		parseErr.Line = line
	}
	return parseErr
}

// ParseConfig parses and validates a job file. The format comes from the
// file extension, or from the content when the extension is unknown.
func ParseConfig(path string) *Result {
	result := &Result{FilePath: path}

	var parsed *ParseResult
	switch DetectFormat(path) {
	case FormatJSON:
		parsed = ParseJSONFile(path)
	case FormatYAML:
		parsed = ParseYAMLFile(path)
	default:
		content, perr := readConfigFile(path)
		if perr != nil {
			result.ParseErrors = append(result.ParseErrors, *perr)
			return result
		}
		format := detectContentFormat(content)
		if format == "" {
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Path:    path,
				Message: "unable to detect job file format: not valid JSON or YAML",
				Type:    ErrorTypeFormat,
			})
			return result
		}
		parsed = parseContent(content, format)
		parsed.FilePath = path
	}

	return finish(result, parsed)
}

// ParseConfigString parses and validates job content from a string.
// An empty format auto-detects from the content.
func ParseConfigString(content, format string) *Result {
	result := &Result{Format: format}

	if format == "" {
		format = detectContentFormat(content)
		if format == "" {
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Message: "unable to detect job file format: not valid JSON or YAML",
				Type:    ErrorTypeFormat,
			})
			return result
		}
	}
	if format != FormatJSON && format != FormatYAML {
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Message: fmt.Sprintf("unsupported format: %s", format),
			Type:    ErrorTypeFormat,
		})
		return result
	}

	return finish(result, parseContent(content, format))
}

func parseContent(content, format string) *ParseResult {
	if format == FormatYAML {
		return ParseYAMLString(content)
	}
	return ParseJSONString(content)
}

// finish copies parse results into result and validates when parsing succeeded.
func finish(result *Result, parsed *ParseResult) *Result {
	result.Data = parsed.Data
	result.ParseErrors = parsed.Errors
	result.Format = parsed.Format
	if !parsed.IsValid() {
		return result
	}
	result.ValidationErrors = ValidateConfig(parsed.Data).Errors
	return result
}

func detectContentFormat(content string) string {
	switch {
	case IsJSON(content):
		return FormatJSON
	case IsYAML(content):
		return FormatYAML
	default:
		return ""
	}
}

// DetectFormat returns the format implied by a file extension, or "".
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// IsJSON reports whether content looks like a JSON document.
func IsJSON(content string) bool {
	content = strings.TrimSpace(content)
	return strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[")
}

// IsYAML reports whether content parses as a non-null YAML document.
// JSON is valid YAML, so this also returns true for JSON content.
func IsYAML(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	var data interface{}
	err := yaml.Unmarshal([]byte(content), &data)
	return err == nil && data != nil
}
