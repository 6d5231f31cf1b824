package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot ingestion outcomes.
const (
	SnapshotStored    = "stored"
	SnapshotDuplicate = "duplicate"
	SnapshotRejected  = "rejected"
)

type snapshotMetrics struct {
	ingested *prometheus.CounterVec
	slot     *prometheus.GaugeVec
	reserves *prometheus.GaugeVec
}

var (
	snapshotMetricsOnce sync.Once
	snapshotRegistry    *snapshotMetrics
)

// Snapshots returns the metrics tracking market snapshot ingestion.
func Snapshots() *snapshotMetrics {
	snapshotMetricsOnce.Do(func() {
		snapshotRegistry = &snapshotMetrics{
			ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "snapshots",
				Name:      "ingested_total",
				Help:      "Snapshot uploads segmented by source and outcome.",
			}, []string{"source", "outcome"}),
			slot: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "snapshots",
				Name:      "slot",
				Help:      "Slot of the snapshot currently serving each market.",
			}, []string{"market"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "snapshots",
				Name:      "reserves",
				Help:      "Reserves loaded for each market.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(snapshotRegistry.ingested, snapshotRegistry.slot, snapshotRegistry.reserves)
	})
	return snapshotRegistry
}

// RecordIngest counts a snapshot upload. Source is "file" or "api".
func (m *snapshotMetrics) RecordIngest(source, outcome string) {
	if m == nil {
		return
	}
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = "unknown"
	}
	m.ingested.WithLabelValues(source, outcome).Inc()
}

// SetLoaded publishes the slot and reserve count of the active snapshot.
func (m *snapshotMetrics) SetLoaded(market string, slot uint64, reserves int) {
	if m == nil {
		return
	}
	m.slot.WithLabelValues(market).Set(float64(slot))
	m.reserves.WithLabelValues(market).Set(float64(reserves))
}
