package app

import (
	"sync"
	"time"

	"variatio/domain/core"
	"variatio/domain/metric"
)

// MetricResultStore accumulates computed metrics in computation order. It
// only ever appends.
type MetricResultStore struct {
	mu      sync.Mutex
	metrics []metric.Metric
	now     func() time.Time
}

// NewMetricResultStore creates an empty store
func NewMetricResultStore() *MetricResultStore {
	return &MetricResultStore{now: time.Now}
}

// Record builds an immutable result from in and appends it under a new metric id
func (s *MetricResultStore) Record(def metric.Definition, in metric.ResultInput) metric.Metric {
	m := metric.Metric{
		ID:         core.NewMetricID(),
		Definition: def,
		Result:     metric.NewResult(in),
		ComputedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
	return m
}

// List returns a copy of the recorded metrics in order
func (s *MetricResultStore) List() []metric.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metric.Metric(nil), s.metrics...)
}

// Len returns the number of recorded metrics
func (s *MetricResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics)
}
