// Package metrics is a thin, pluggable metrics facade.
//
// Core packages emit counters and histogram samples through the package-level
// functions; the process wires a concrete Backend (or none) at startup. The
// default backend discards everything, so library code can emit metrics
// unconditionally.
package metrics

import "sync"

// Labels are metric dimensions. Backends decide which labels they honor.
type Labels map[string]string

// Backend receives emitted metrics.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// Metric names emitted by the profiling pipeline.
const (
	MetricRowsTotal         = "profiler_rows_total"
	MetricCastFailuresTotal = "profiler_cast_failures_total"
	MetricColumnsTotal      = "profiler_columns_total"
	MetricStageDuration     = "profiler_stage_duration_seconds"
)

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Passing nil restores the
// discarding default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

func Flush() error { return current().Flush() }

func Close() error { return current().Close() }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
func (nopBackend) Close() error                             { return nil }
