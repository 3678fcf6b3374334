package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canectors/dumpfilter/pkg/dump"
)

func sampleResult() *dump.ExecutionResult {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &dump.ExecutionResult{
		JobID:        "filter-sp",
		Status:       "success",
		StartedAt:    started,
		CompletedAt:  started.Add(2 * time.Second),
		LinesRead:    10,
		LinesKept:    7,
		LinesDropped: 3,
		Timings: dump.StageTimings{
			Input:  500 * time.Millisecond,
			Filter: 250 * time.Millisecond,
			Output: time.Second,
		},
	}
}

func TestRecord(t *testing.T) {
	m := New()
	m.Record(sampleResult())
	m.Record(sampleResult())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Executions.WithLabelValues("filter-sp", "success")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.Lines.WithLabelValues("filter-sp", "read")))
	assert.Equal(t, 14.0, testutil.ToFloat64(m.Lines.WithLabelValues("filter-sp", "kept")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Lines.WithLabelValues("filter-sp", "dropped")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.StageDuration.WithLabelValues("filter-sp", "filter")))
	assert.Equal(t, float64(sampleResult().CompletedAt.Unix()), testutil.ToFloat64(m.LastExecution.WithLabelValues("filter-sp")))
}

func TestRecord_FailedExecution(t *testing.T) {
	m := New()
	result := sampleResult()
	result.Status = "error"
	result.CompletedAt = time.Time{}
	m.Record(result)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("filter-sp", "error")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.LastExecution))
}

func TestRecord_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Record(sampleResult()) })
	assert.NotPanics(t, func() { New().Record(nil) })
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Record(sampleResult())

	path := filepath.Join(t.TempDir(), "dumpfilter.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `dumpfilter_lines_total{job="filter-sp",outcome="kept"} 7`)
	assert.Contains(t, text, `dumpfilter_executions_total{job="filter-sp",status="success"} 1`)
	assert.True(t, strings.Contains(text, "# TYPE dumpfilter_stage_duration_seconds gauge"))
}

func TestWriteTextfile_MissingDirectory(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dumpfilter.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing metrics textfile")
}
