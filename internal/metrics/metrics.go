// Package metrics is a tiny facade between pipeline code and a metrics
// backend. Pipeline code calls the package-level helpers; the binary decides
// at startup which Backend (if any) receives them. The default backend
// discards everything, so library code never has to nil-check.
//
// Metric names used by the pipeline:
//
//	etl_step_total{step,status}        counter, one per completed step
//	etl_records_total{kind}            counter, rows extracted/loaded/rejected
//	etl_batches_total                  counter, sink write batches
//	etl_step_duration_seconds{step,status} histogram
package metrics

import "sync"

// Labels are metric dimensions, e.g. {"step": "extract_catalog", "status": "ok"}.
type Labels map[string]string

// Backend receives metric updates. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer and submit on demand.
type Flusher interface {
	Flush() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend replaces the active backend. Passing nil restores the discard
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter adds delta to a counter on the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, labels)
}

// ObserveHistogram records a histogram sample on the active backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveHistogram(name, value, labels)
}

// Flush asks the active backend to submit buffered metrics, if it buffers.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	if f, ok := b.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
