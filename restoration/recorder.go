package restoration

import "time"

// Recorder collects run timings and metrics. profiler.RuntimeProfiler satisfies it.
type Recorder interface {
	RecordOperation(name string, d time.Duration)
	RecordMetric(name string, value float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, time.Duration) {}
func (nopRecorder) RecordMetric(string, float64)          {}
