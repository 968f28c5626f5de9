// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// Counters and histograms live in a private registry; Flush() pushes the
// whole registry to the gateway under the configured job name. This suits
// short-lived batch jobs where scraping is impractical.
package prompush

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sparkify/internal/metrics"
)

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	pusher   *push.Pusher
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend builds a backend pushing to gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if jobName == "" {
		return nil, fmt.Errorf("prompush: job name is required")
	}
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}

	reg := prometheus.NewRegistry()
	return &Backend{
		pusher:     push.New(gatewayURL, jobName).Gatherer(reg),
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	keys, vals := splitLabels(labels)

	b.mu.Lock()
	cv, ok := b.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, keys)
		if err := b.registry.Register(cv); err != nil {
			// Same name registered with different label keys; drop the sample.
			b.mu.Unlock()
			return
		}
		b.counters[name] = cv
	}
	b.mu.Unlock()

	c, err := cv.GetMetricWithLabelValues(vals...)
	if err != nil {
		return
	}
	c.Add(delta)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	keys, vals := splitLabels(labels)

	b.mu.Lock()
	hv, ok := b.histograms[name]
	if !ok {
		hv = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		if err := b.registry.Register(hv); err != nil {
			b.mu.Unlock()
			return
		}
		b.histograms[name] = hv
	}
	b.mu.Unlock()

	h, err := hv.GetMetricWithLabelValues(vals...)
	if err != nil {
		return
	}
	h.Observe(value)
}

// Flush pushes the current registry state to the gateway.
func (b *Backend) Flush() error {
	return b.pusher.Push()
}

// splitLabels returns label keys in sorted order with values aligned, so a
// metric name always maps to a stable label-key set.
func splitLabels(labels metrics.Labels) (keys []string, vals []string) {
	if len(labels) == 0 {
		return nil, nil
	}
	keys = make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals = make([]string, len(keys))
	for i, k := range keys {
		vals[i] = labels[k]
	}
	return keys, vals
}
