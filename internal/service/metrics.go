package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloak_clicks_recorded_total",
		Help: "Clicks added to the pending accumulator",
	})

	clicksFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloak_clicks_flushed_total",
		Help: "Clicks committed to the persistent store",
	})

	flushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloak_click_flush_failures_total",
		Help: "Per-URL flush attempts that failed and were kept for the next cycle",
	})

	urlsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloak_urls_completed_total",
		Help: "URLs that reached their click limit",
	})

	statusSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloak_status_syncs_total",
		Help: "Status synchronizer writes partitioned by direction",
	}, []string{"direction"})
)
