package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveFetch("links", 20*time.Millisecond, nil)
	r.ObserveFetch("links", 5*time.Millisecond, errors.New("agent down"))
	r.ObserveFetch("links", 5*time.Millisecond, nil)
	r.ObserveDropped("links")
	r.ObserveRows("links", 12, 36)

	if got := testutil.ToFloat64(r.fetches.WithLabelValues("links", "ok")); got != 2 {
		t.Fatalf("ok fetches = %v", got)
	}
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("links", "error")); got != 1 {
		t.Fatalf("failed fetches = %v", got)
	}
	if got := testutil.ToFloat64(r.dropped.WithLabelValues("links")); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(r.rows.WithLabelValues("links")); got != 12 {
		t.Fatalf("rows = %v", got)
	}
	if got := testutil.ToFloat64(r.rateKeys.WithLabelValues("links")); got != 36 {
		t.Fatalf("rate keys = %v", got)
	}
	if n := testutil.CollectAndCount(r.duration); n != 1 {
		t.Fatalf("duration series = %d", n)
	}
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	NewRecorder(prometheus.NewRegistry())
	NewRecorder(prometheus.NewRegistry())
}
