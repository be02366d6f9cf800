package chainsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relayer_market_syncs_total",
	Help: "Total per-market sync runs by result.",
}, []string{"result"})
