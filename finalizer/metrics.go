package finalizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_finalize_attempts_total",
		Help: "Finalize transactions submitted.",
	})
	successesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_finalize_completed_total",
		Help: "Queue entries transitioned to completed.",
	})
	failuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_finalize_failures_total",
		Help: "Finalize attempts that failed and were left for retry.",
	})
)
