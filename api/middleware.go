package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevinms/leakybucket-go"
)

// rateLimiter is a per-client-IP leaky bucket. Two instances exist: a strict
// write tier for attestation submission and sync triggers, and a default
// tier for everything else. Health routes bypass both.
type rateLimiter struct {
	collector *leakybucket.Collector
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	// The collector leaks at a per-second rate; spread the window budget
	// evenly so capacity equals the per-window maximum.
	rate := float64(maxRequests) / window.Seconds()
	return &rateLimiter{
		collector: leakybucket.NewCollector(rate, int64(maxRequests), true),
	}
}

func (rl *rateLimiter) allow(clientIP string) bool {
	return rl.collector.Add(clientIP, 1) > 0
}

func (rl *rateLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			rateLimitedTotal.Inc()
			writeJSON(w, http.StatusTooManyRequests, M{
				"success": false,
				"error": M{
					"message": "too many requests",
					"code":    "RATE_LIMIT_EXCEEDED",
				},
			})
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		log.WithField("route", route).
			WithField("status", rec.status).
			WithField("duration", time.Since(start)).
			Trace("Request served")
	}
}
