package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingCollector struct{ n float64 }

func (c *countingCollector) CollectMetrics() map[string]float64 {
	c.n++
	return map[string]float64{"batch.processed": c.n}
}

func TestRecordOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})
	rp.RecordOperation("restoration.pass", 10*time.Millisecond)
	rp.RecordOperation("restoration.pass", 30*time.Millisecond)
	rp.RecordOperation("restoration.run", 50*time.Millisecond)

	r := rp.Report()
	require.Len(t, r.Operations, 2)
	pass := r.Operations[0]
	assert.Equal(t, "restoration.pass", pass.Name)
	assert.Equal(t, 20*time.Millisecond, pass.Avg)
	assert.Equal(t, 10*time.Millisecond, pass.Min)
	assert.Equal(t, 30*time.Millisecond, pass.Max)
	assert.Equal(t, int64(2), pass.Count)
	assert.Equal(t, "restoration.run", r.Operations[1].Name)
}

func TestRecordMetricKeepsWindow(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 3})
	for _, v := range []float64{1, 2, 3, 4, 5} {
		rp.RecordMetric("iterations", v)
	}

	r := rp.Report()
	require.Len(t, r.Metrics, 1)
	m := r.Metrics[0]
	assert.Equal(t, 3, m.Samples)
	assert.Equal(t, int64(5), m.Count)
	assert.InDelta(t, 4, m.Avg, 1e-9)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 5.0, m.Max)
}

func TestStartOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})
	done := rp.StartOperation("decode")
	time.Sleep(2 * time.Millisecond)
	done()

	r := rp.Report()
	require.Len(t, r.Operations, 1)
	assert.GreaterOrEqual(t, r.Operations[0].Total, 2*time.Millisecond)
}

func TestStartStopReports(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rp := NewRuntimeProfiler(ProfilingOptions{
		ReportInterval: 5 * time.Millisecond,
		SampleInterval: time.Millisecond,
		Logger:         zap.New(core),
	})
	collector := &countingCollector{}
	rp.AddMetricsCollector(collector)
	rp.RecordOperation("restoration.run", time.Millisecond)

	rp.Start()
	rp.Start()
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("profiler operation").Len() > 0
	}, time.Second, 5*time.Millisecond)
	rp.Stop()
	rp.Stop()

	r := rp.Report()
	assert.NotZero(t, r.PeakHeapAlloc)
	require.Len(t, r.Metrics, 1)
	assert.Equal(t, "batch.processed", r.Metrics[0].Name)
	assert.Positive(t, logs.FilterMessage("profiler status").Len())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
}
