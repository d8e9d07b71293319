// Package profiler records run timings, custom metrics and Go runtime usage
// while images are restored, and reports them periodically through zap.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler tracks operation timings, custom metrics and memory usage.
//
// It satisfies restoration.Recorder, so an engine can feed it directly. All
// methods are safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats      runtime.MemStats
	peakHeapAlloc uint64
	lastGCCount   uint32

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to sample memory usage (default: 100ms)
	SampleInterval time.Duration
	// MaxSamples bounds the samples kept per metric or operation (default: 600)
	MaxSamples int
	// Logger receives the periodic reports (default: no-op)
	Logger *zap.Logger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.SampleInterval == 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling and periodic reporting. Calling it again is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(2)
	go rp.sampleLoop()
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop stops the background goroutines and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a collector polled on every sample.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++
	tracker.min = min(tracker.min, value)
	tracker.max = max(tracker.max, value)
}

// StartOperation begins timing an operation and returns the function that ends it.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation records one completed operation of the given duration.
func (rp *RuntimeProfiler) RecordOperation(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	tracker.minTime = min(tracker.minTime, duration)
	tracker.maxTime = max(tracker.maxTime, duration)
}

func (rp *RuntimeProfiler) sampleLoop() {
	defer rp.wg.Done()

	ticker := time.NewTicker(rp.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			rp.sample()
		}
	}
}

func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	rp.peakHeapAlloc = max(rp.peakHeapAlloc, rp.memStats.HeapAlloc)

	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetricLocked(name, value)
		}
	}
}

// MetricStats summarizes one custom metric.
type MetricStats struct {
	Name    string
	Avg     float64
	Min     float64
	Max     float64
	Samples int
	Count   int64
}

// OperationStats summarizes the timings of one operation.
type OperationStats struct {
	Name  string
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Total time.Duration
	Count int64
}

// Report is a snapshot of everything the profiler has recorded.
type Report struct {
	Uptime        time.Duration
	Goroutines    int
	HeapAlloc     uint64
	PeakHeapAlloc uint64
	NumGC         uint32
	Metrics       []MetricStats
	Operations    []OperationStats
}

// Report returns the current statistics, sorted by name.
func (rp *RuntimeProfiler) Report() Report {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	rp.peakHeapAlloc = max(rp.peakHeapAlloc, rp.memStats.HeapAlloc)
	return rp.reportLocked()
}

func (rp *RuntimeProfiler) reportLocked() Report {
	r := Report{
		Uptime:        time.Since(rp.startTime),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     rp.memStats.HeapAlloc,
		PeakHeapAlloc: rp.peakHeapAlloc,
		NumGC:         rp.memStats.NumGC,
	}
	for name, t := range rp.customMetrics {
		if len(t.values) == 0 {
			continue
		}
		r.Metrics = append(r.Metrics, MetricStats{
			Name:    name,
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
			Samples: len(t.values),
			Count:   t.count,
		})
	}
	for name, t := range rp.operationTimes {
		if len(t.durations) == 0 {
			continue
		}
		r.Operations = append(r.Operations, OperationStats{
			Name:  name,
			Avg:   t.totalTime / time.Duration(len(t.durations)),
			Min:   t.minTime,
			Max:   t.maxTime,
			Total: t.totalTime,
			Count: t.count,
		})
	}
	sort.Slice(r.Metrics, func(i, j int) bool { return r.Metrics[i].Name < r.Metrics[j].Name })
	sort.Slice(r.Operations, func(i, j int) bool { return r.Operations[i].Name < r.Operations[j].Name })
	return r
}

// emitStatusReport logs the current statistics.
func (rp *RuntimeProfiler) emitStatusReport() {
	rp.mu.Lock()
	r := rp.reportLocked()
	newGC := r.NumGC - rp.lastGCCount
	rp.lastGCCount = r.NumGC
	rp.mu.Unlock()

	rp.LogReport(r, zap.Uint32("new_gc", newGC))
}

// LogReport writes r to the profiler logger, one entry per metric and operation.
func (rp *RuntimeProfiler) LogReport(r Report, fields ...zap.Field) {
	rp.logger.Info("profiler status",
		append(fields,
			zap.Duration("uptime", r.Uptime.Truncate(time.Millisecond)),
			zap.Int("goroutines", r.Goroutines),
			zap.String("heap_alloc", FormatBytes(r.HeapAlloc)),
			zap.String("peak_heap_alloc", FormatBytes(r.PeakHeapAlloc)),
			zap.Uint32("gc_cycles", r.NumGC),
		)...,
	)
	for _, m := range r.Metrics {
		rp.logger.Info("profiler metric",
			zap.String("name", m.Name),
			zap.Float64("avg", m.Avg),
			zap.Float64("min", m.Min),
			zap.Float64("max", m.Max),
			zap.Int("samples", m.Samples),
		)
	}
	for _, op := range r.Operations {
		rp.logger.Info("profiler operation",
			zap.String("name", op.Name),
			zap.Duration("avg", op.Avg.Truncate(time.Microsecond)),
			zap.Duration("min", op.Min.Truncate(time.Microsecond)),
			zap.Duration("max", op.Max.Truncate(time.Microsecond)),
			zap.Int64("count", op.Count),
		)
	}
}

// FormatBytes formats byte counts in human-readable format.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
