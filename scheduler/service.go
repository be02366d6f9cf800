// Package scheduler owns the relayer's periodic reconcilers. Each job runs
// at a fixed cadence under a single-flight guard: a tick that would overlap
// a still-running predecessor is skipped, not queued.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sidebetlabs/relayer/async"
	"github.com/sidebetlabs/relayer/db"
)

var log = logrus.WithField("prefix", "scheduler")

// Intervals configures job cadences. Zero values fall back to defaults.
type Intervals struct {
	MarketSync    time.Duration
	DisputeSweep  time.Duration
	FinalizeSweep time.Duration
	StaleSweep    time.Duration
	LogCleanup    time.Duration
}

func (i *Intervals) withDefaults() Intervals {
	out := *i
	if out.MarketSync == 0 {
		out.MarketSync = 5 * time.Minute
	}
	if out.DisputeSweep == 0 {
		out.DisputeSweep = 2 * time.Minute
	}
	if out.FinalizeSweep == 0 {
		out.FinalizeSweep = time.Minute
	}
	if out.StaleSweep == 0 {
		out.StaleSweep = time.Hour
	}
	if out.LogCleanup == 0 {
		out.LogCleanup = 24 * time.Hour
	}
	return out
}

const syncLogRetention = 7 * 24 * time.Hour

// Syncer is the sync service surface the scheduler drives.
type Syncer interface {
	SyncStaleMarkets(ctx context.Context)
	DiscoverNewMarkets(ctx context.Context)
}

// Finalizer is the finalization service surface the scheduler drives.
type Finalizer interface {
	ProcessQueue(ctx context.Context)
	CheckDisputeWindows(ctx context.Context)
	CheckOldProposals(ctx context.Context)
}

// LogCleaner trims the sync log.
type LogCleaner interface {
	CleanupSyncLogs(ctx context.Context, retention time.Duration) (int64, error)
	LogSyncOperation(ctx context.Context, operation, market, status, message string) error
}

// Service fires the reconcilers. Implements runtime.Service.
type Service struct {
	ctx       context.Context
	cancel    context.CancelFunc
	syncer    Syncer
	finalizer Finalizer
	cleaner   LogCleaner
	intervals Intervals
}

// New builds the scheduler.
func New(ctx context.Context, syncer Syncer, finalizer Finalizer, cleaner LogCleaner, intervals Intervals) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:       ctx,
		cancel:    cancel,
		syncer:    syncer,
		finalizer: finalizer,
		cleaner:   cleaner,
		intervals: intervals.withDefaults(),
	}
}

// Start registers the periodic jobs and kicks off an immediate discovery
// pass so a fresh deployment converges without waiting a full period.
func (s *Service) Start() {
	log.WithFields(logrus.Fields{
		"marketSync":    s.intervals.MarketSync,
		"disputeSweep":  s.intervals.DisputeSweep,
		"finalizeSweep": s.intervals.FinalizeSweep,
		"staleSweep":    s.intervals.StaleSweep,
	}).Info("Starting reconcilers")

	marketSync := async.SingleFlight(func() {
		s.syncer.DiscoverNewMarkets(s.ctx)
		s.syncer.SyncStaleMarkets(s.ctx)
	})
	go marketSync()

	async.RunEvery(s.ctx, s.intervals.MarketSync, marketSync)
	async.RunEvery(s.ctx, s.intervals.DisputeSweep, async.SingleFlight(func() {
		s.finalizer.CheckDisputeWindows(s.ctx)
	}))
	async.RunEvery(s.ctx, s.intervals.FinalizeSweep, async.SingleFlight(func() {
		s.finalizer.ProcessQueue(s.ctx)
	}))
	async.RunEvery(s.ctx, s.intervals.StaleSweep, async.SingleFlight(func() {
		s.finalizer.CheckOldProposals(s.ctx)
	}))
	async.RunEvery(s.ctx, s.intervals.LogCleanup, async.SingleFlight(s.cleanupLogs))
}

func (s *Service) cleanupLogs() {
	removed, err := s.cleaner.CleanupSyncLogs(s.ctx, syncLogRetention)
	if err != nil {
		log.WithError(err).Error("Sync log cleanup failed")
		return
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("Trimmed sync log")
	}
	if err := s.cleaner.LogSyncOperation(s.ctx, db.OpCleanup, "", db.StatusOK, ""); err != nil {
		log.WithError(err).Warn("Could not record cleanup run")
	}
}

// Stop cancels all job contexts.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always reports healthy; job failures are visible in the sync log
// and metrics rather than service status.
func (s *Service) Status() error {
	return nil
}
