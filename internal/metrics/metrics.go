// Package metrics exposes Prometheus counters for handled events and an
// instrumented Index Store wrapper.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sh3r4rd/object_index/internal/indexstore"
	"github.com/sh3r4rd/object_index/internal/model"
)

const namespace = "object_index"

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultConflict = "conflict"
)

// Metrics holds the indexer and store collectors.
type Metrics struct {
	events        *prometheus.CounterVec
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Change notifications handled, by action and result.",
		}, []string{"action", "result"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Index Store calls, by operation and result.",
		}, []string{"op", "result"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of Index Store calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(m.events, m.storeOps, m.storeDuration)

	return m
}

// ObserveEvent counts one handled change record.
// ObserveEvent counts one handled change record by action and result.
func (m *Metrics) ObserveEvent(action model.Action, err error) {
	m.events.WithLabelValues(string(action), result(err)).Inc()
}

func (m *Metrics) observeStore(op string, start time.Time, err error) {
	m.storeOps.WithLabelValues(op, result(err)).Inc()
	m.storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, indexstore.ErrConflict):
		return ResultConflict
	default:
		return ResultError
	}
}

type store struct {
	source indexstore.Store
	m      *Metrics
}

// Instrument wraps source so every call is counted and timed.
func (m *Metrics) Instrument(source indexstore.Store) indexstore.Store {
	if m == nil {
		return source
	}

	return &store{source: source, m: m}
}

func (s *store) Lookup(ctx context.Context, filename string) (model.IndexRecord, bool, error) {
	start := time.Now()
	rec, ok, err := s.source.Lookup(ctx, filename)
	s.m.observeStore(indexstore.OpLookup, start, err)
	return rec, ok, err
}

func (s *store) Put(ctx context.Context, rec model.IndexRecord) error {
	start := time.Now()
	err := s.source.Put(ctx, rec)
	s.m.observeStore(indexstore.OpPut, start, err)
	return err
}

func (s *store) PutIf(ctx context.Context, rec model.IndexRecord, prev *model.IndexRecord) error {
	start := time.Now()
	err := s.source.PutIf(ctx, rec, prev)
	s.m.observeStore("put_if", start, err)
	return err
}

func (s *store) Delete(ctx context.Context, filename string) error {
	start := time.Now()
	err := s.source.Delete(ctx, filename)
	s.m.observeStore(indexstore.OpDelete, start, err)
	return err
}
