package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erp_sync",
		Name:      "jobs_total",
		Help:      "Sync jobs that reached a terminal state.",
	}, []string{"type", "status"})

	JobsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "erp_sync",
		Name:      "jobs_running",
		Help:      "Sync jobs currently running.",
	}, []string{"type"})

	ItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erp_sync",
		Name:      "items_total",
		Help:      "Items processed by sync jobs, by outcome.",
	}, []string{"type", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "erp_sync",
		Name:      "job_duration_seconds",
		Help:      "Wall time of finished sync jobs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"type"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erp_sync",
		Name:      "item_retries_total",
		Help:      "Retries of transient per-item failures.",
	}, []string{"type"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
