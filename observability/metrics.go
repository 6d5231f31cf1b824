package observability

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"klendrisk/native/lending"
)

const namespace = "klendrisk"

// EngineMetrics records risk engine query outcomes. It satisfies
// lending.Observer.
type EngineMetrics struct {
	queries   *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

var _ lending.Observer = (*EngineMetrics)(nil)

// Engine returns the lazily registered engine metrics.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			queries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "queries_total",
				Help:      "Risk engine queries segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Risk engine failures segmented by operation and error class.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "query_duration_seconds",
				Help:      "Latency distribution for risk engine queries.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			}, []string{"operation"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "throttles_total",
				Help:      "Requests rejected before reaching the engine.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			engineRegistry.queries,
			engineRegistry.errors,
			engineRegistry.latency,
			engineRegistry.throttles,
		)
	})
	return engineRegistry
}

// ObserveQuery implements lending.Observer.
func (m *EngineMetrics) ObserveQuery(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(op, ErrorReason(err)).Inc()
	}
	m.queries.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit" or "unauthorized".
func (m *EngineMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}

// ErrorReason classifies err into a low-cardinality label.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, lending.ErrReferenceNotFound):
		return "reference_not_found"
	case errors.Is(err, lending.ErrInvalidActionArguments):
		return "invalid_action"
	case errors.Is(err, lending.ErrElevationGroupIncompatible):
		return "group_incompatible"
	case errors.Is(err, lending.ErrEmptyCollateralSet):
		return "empty_collateral"
	case errors.Is(err, lending.ErrUnknownElevationGroup):
		return "unknown_group"
	case errors.Is(err, lending.ErrPriceNotFound):
		return "price_not_found"
	default:
		return "internal"
	}
}
