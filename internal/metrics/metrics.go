// Package metrics decouples pipeline instrumentation from any particular
// vendor. Flow and operator code emits against Backend using the metric
// names below; the shipped backends (datadog, prompush) translate those
// into their own wire formats and ignore names they do not know.
package metrics

import "sync"

// Labels carries the dimension values attached to a single emission.
type Labels map[string]string

// Backend receives metric emissions. Implementations must tolerate
// concurrent calls to IncCounter and ObserveHistogram.
type Backend interface {
	// IncCounter adds delta to a monotonic counter.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records one sample of a distribution.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush submits buffered data now.
	Flush() error
	// Close flushes and releases backend resources.
	Close() error
}

// Metric names understood by the shipped backends.
const (
	// NodeTotal counts operator node executions. Labels: operator, status.
	NodeTotal = "wrangle_node_total"
	// RowsTotal counts dataset rows crossing a boundary. Labels: kind
	// (read, written).
	RowsTotal = "wrangle_rows_total"
	// CastErrorsTotal counts cells that failed a type cast. Labels: type.
	CastErrorsTotal = "wrangle_cast_errors_total"
	// ModelFitTotal counts fresh model fits. Labels: operator.
	ModelFitTotal = "wrangle_model_fit_total"
	// ModelCacheHitsTotal counts fitted models restored from trained
	// parameters instead of refit. Labels: operator.
	ModelCacheHitsTotal = "wrangle_model_cache_hits_total"
	// NodeDurationSeconds samples per-node wall time. Labels: operator,
	// status.
	NodeDurationSeconds = "wrangle_node_duration_seconds"
	// SourceBytes samples bytes read per source load. Labels: format.
	SourceBytes = "wrangle_source_bytes"
	// SinkBytes samples bytes written per sink store. Labels: format.
	SinkBytes = "wrangle_sink_bytes"
)

// Nop discards all emissions. It is the backend until SetBackend installs
// a real one.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = Nop{}
)

// SetBackend installs the process-wide backend. A nil b restores the nop
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = Nop{}
		return
	}
	backend = b
}

// Default returns the installed backend.
func Default() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	Default().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	Default().ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error { return Default().Flush() }

// Close closes the installed backend and restores the nop backend, so a
// second Close is harmless.
func Close() error {
	mu.Lock()
	b := backend
	backend = Nop{}
	mu.Unlock()
	return b.Close()
}
