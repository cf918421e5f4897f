// Package observability exposes poll and table metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HaPhanBaoMinh/kmon/internal/table"
)

// Recorder implements table.FetchObserver.
type Recorder struct {
	fetches  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.GaugeVec
	rateKeys *prometheus.GaugeVec
}

var _ table.FetchObserver = (*Recorder)(nil)

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kmon_fetch_total",
			Help: "Fetches completed per entity, by outcome",
		}, []string{"entity", "outcome"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kmon_fetch_dropped_total",
			Help: "Fetch results discarded because a newer request was issued or the view closed",
		}, []string{"entity"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kmon_fetch_duration_seconds",
			Help:    "Time spent in the data source per fetch",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"entity"}),
		rows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kmon_rows",
			Help: "Rows in the latest applied snapshot",
		}, []string{"entity"}),
		rateKeys: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kmon_rate_keys",
			Help: "Counter series tracked by the rate estimator",
		}, []string{"entity"}),
	}
}

func (r *Recorder) ObserveFetch(entity string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fetches.WithLabelValues(entity, outcome).Inc()
	r.duration.WithLabelValues(entity).Observe(took.Seconds())
}

func (r *Recorder) ObserveDropped(entity string) {
	r.dropped.WithLabelValues(entity).Inc()
}

func (r *Recorder) ObserveRows(entity string, rows, rateKeys int) {
	r.rows.WithLabelValues(entity).Set(float64(rows))
	r.rateKeys.WithLabelValues(entity).Set(float64(rateKeys))
}
