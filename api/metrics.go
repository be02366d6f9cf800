package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "status"})
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)
