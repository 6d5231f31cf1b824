package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"klendrisk/native/lending"
)

func TestEngineMetricsObserveQuery(t *testing.T) {
	m := Engine()
	success := m.queries.WithLabelValues("borrow_power", "success")
	failure := m.queries.WithLabelValues("borrow_power", "error")
	reason := m.errors.WithLabelValues("borrow_power", "group_incompatible")
	beforeSuccess := testutil.ToFloat64(success)
	beforeFailure := testutil.ToFloat64(failure)
	beforeReason := testutil.ToFloat64(reason)

	m.ObserveQuery("borrow_power", time.Millisecond, nil)
	m.ObserveQuery("borrow_power", time.Millisecond, fmt.Errorf("borrow: %w", lending.ErrElevationGroupIncompatible))

	if diff := testutil.ToFloat64(success) - beforeSuccess; diff != 1 {
		t.Fatalf("expected one success, got %v", diff)
	}
	if diff := testutil.ToFloat64(failure) - beforeFailure; diff != 1 {
		t.Fatalf("expected one failure, got %v", diff)
	}
	if diff := testutil.ToFloat64(reason) - beforeReason; diff != 1 {
		t.Fatalf("expected classified failure, got %v", diff)
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveQuery("simulate", time.Second, errors.New("boom"))
	m.RecordThrottle("", "")
}

func TestRecordThrottleDefaults(t *testing.T) {
	m := Engine()
	counter := m.throttles.WithLabelValues("unknown", "unspecified")
	before := testutil.ToFloat64(counter)
	m.RecordThrottle("", "  ")
	if diff := testutil.ToFloat64(counter) - before; diff != 1 {
		t.Fatalf("expected throttle increment, got %v", diff)
	}
}

func TestErrorReason(t *testing.T) {
	cases := map[error]string{
		nil:                               "none",
		lending.ErrReferenceNotFound:      "reference_not_found",
		lending.ErrInvalidActionArguments: "invalid_action",
		lending.ErrEmptyCollateralSet:     "empty_collateral",
		lending.ErrUnknownElevationGroup:  "unknown_group",
		lending.ErrPriceNotFound:          "price_not_found",
		errors.New("database is locked"):  "internal",
	}
	for err, want := range cases {
		if got := ErrorReason(err); got != want {
			t.Fatalf("ErrorReason(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestSnapshotMetrics(t *testing.T) {
	m := Snapshots()
	counter := m.ingested.WithLabelValues("api", SnapshotDuplicate)
	before := testutil.ToFloat64(counter)
	m.RecordIngest(" API ", SnapshotDuplicate)
	if diff := testutil.ToFloat64(counter) - before; diff != 1 {
		t.Fatalf("expected ingest increment, got %v", diff)
	}

	m.SetLoaded("market-1", 250_000_000, 3)
	if got := testutil.ToFloat64(m.slot.WithLabelValues("market-1")); got != 250_000_000 {
		t.Fatalf("unexpected slot gauge %v", got)
	}
	if got := testutil.ToFloat64(m.reserves.WithLabelValues("market-1")); got != 3 {
		t.Fatalf("unexpected reserves gauge %v", got)
	}
}
