// Package async includes helpers for scheduling runnable, periodic functions
// used by the relayer's reconcilers.
package async

import (
	"context"
	"reflect"
	"runtime"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunEvery runs the provided command periodically.
// It runs in a goroutine, and can be cancelled by finishing the supplied context.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	go func() {
		for {
			select {
			case <-ticker.C:
				log.WithField("function", funcName).Trace("running")
				f()
			case <-ctx.Done():
				log.WithField("function", funcName).Debug("context is closed, exiting")
				ticker.Stop()
				return
			}
		}
	}()
}

// SingleFlight wraps f so that a new invocation is skipped while a previous
// one is still running. Reconciler ticks must never pile up behind a slow
// chain RPC; a skipped tick is retried on the next period.
func SingleFlight(f func()) func() {
	var busy int32
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	return func() {
		if !atomic.CompareAndSwapInt32(&busy, 0, 1) {
			log.WithField("function", funcName).Debug("previous run still in progress, skipping tick")
			return
		}
		defer atomic.StoreInt32(&busy, 0)
		f()
	}
}
