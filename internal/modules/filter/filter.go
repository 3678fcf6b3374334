// Package filter provides implementations for filter modules.
// Filter modules decide, line by line, which lines of a dump are kept.
package filter

import (
	"context"
	"errors"
)

// ErrNilConfig is returned when a constructor receives no configuration.
var ErrNilConfig = errors.New("module configuration is nil")

// Module represents a filter module that keeps or drops lines.
type Module interface {
	// Process returns the kept lines in their original order.
	// Lines are never modified, reordered or merged.
	Process(ctx context.Context, lines []string) ([]string, error)
}

// Error handling modes shared by the expression and script filters.
const (
	// OnErrorFail aborts the execution on the first failing line (default)
	OnErrorFail = "fail"
	// OnErrorSkip drops the failing line and continues
	OnErrorSkip = "skip"
	// OnErrorLog logs the failure, keeps the line unchanged and continues
	OnErrorLog = "log"
)

// cancelCheckInterval is how many lines are processed between context checks.
const cancelCheckInterval = 1024

// canceled reports the context error every cancelCheckInterval lines.
func canceled(ctx context.Context, idx int) error {
	if idx%cancelCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}

// normalizeOnError returns the error mode, defaulting to fail for empty or unknown values.
func normalizeOnError(onError string) (string, bool) {
	switch onError {
	case "":
		return OnErrorFail, true
	case OnErrorFail, OnErrorSkip, OnErrorLog:
		return onError, true
	default:
		return OnErrorFail, false
	}
}

// stringSlice converts a decoded JSON/YAML list into strings.
func stringSlice(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
