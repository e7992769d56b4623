package persistence

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// MetricsObserver records the outcome and duration of every operation
// published on a factory's event bus.
type MetricsObserver struct {
	f             *QueryFactory
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	subscriptions []string
	logger        *zap.Logger
}

// NewMetricsObserver registers the query metrics with reg and subscribes to
// the factory's events. Registering twice with the same registerer panics.
func NewMetricsObserver(f *QueryFactory, reg prometheus.Registerer, logger *zap.Logger) *MetricsObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	m := &MetricsObserver{
		f: f,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "querydsl_operations_total",
			Help: "Number of executed operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querydsl_operation_duration_seconds",
			Help:    "Duration of executed operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		logger: logger,
	}

	outcomes := map[PersistenceEventType]string{
		QuerySuccess:        "success",
		QueryFailed:         "failed",
		BulkUpdateSuccess:   "success",
		BulkUpdateFailed:    "failed",
		BulkDeleteSuccess:   "success",
		BulkDeleteFailed:    "failed",
		EntityInsertSuccess: "success",
		EntityInsertFailed:  "failed",
		TransactionSuccess:  "success",
		TransactionFailed:   "failed",
	}
	for event, outcome := range outcomes {
		id := f.RegisterSubscription(RegisterSubscriptionOptions{
			Event: event,
			Callback: func(_ context.Context, e PersistenceEvent) error {
				m.record(e, outcome)
				return nil
			},
		})
		m.subscriptions = append(m.subscriptions, id)
	}
	return m
}

func (m *MetricsObserver) record(e PersistenceEvent, outcome string) {
	if e.Duration != nil {
		m.duration.WithLabelValues(e.Operation).Observe(e.Duration.Seconds())
	}
	m.operations.WithLabelValues(e.Operation, outcome).Inc()
	if outcome == "failed" {
		m.logger.Debug("Operation failed", zap.String("operation", e.Operation), zap.String("event", string(e.Type)))
	}
}

// Close stops observing the factory. Collected metrics stay registered.
func (m *MetricsObserver) Close() {
	for _, id := range m.subscriptions {
		m.f.UnregisterSubscription(id)
	}
	m.subscriptions = nil
}
