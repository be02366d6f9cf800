// Package finalizer drives markets from Proposed to Resolved: it scans the
// finalization queue, checks readiness, assembles the signature bundle and
// submits the finalize transaction, reconciling afterward. Failures are
// recorded on the queue entry and retried on later sweeps; nothing here
// raises to the scheduler.
package finalizer

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/types"
)

var log = logrus.WithField("prefix", "finalizer")

// Chain is the slice of the gateway this service uses.
type Chain interface {
	ChainTime(ctx context.Context) (uint64, error)
	GetMarketInfo(ctx context.Context, market common.Address) (*types.MarketInfo, error)
	FinalizeMarket(ctx context.Context, market common.Address, signatures [][]byte, nonces []*big.Int, signers []common.Address) (*ethtypes.Receipt, error)
}

// Database is the slice of the store this service uses.
type Database interface {
	GetMarket(ctx context.Context, address string) (*db.Market, error)
	GetActiveProposal(ctx context.Context, market string) (*db.Proposal, error)
	CountValidAttestations(ctx context.Context, market string, outcome uint8) (int, error)
	CountEligibleParticipants(ctx context.Context, market string, outcome uint8) (int, error)
	PendingFinalizations(ctx context.Context, limit int) ([]*db.QueueEntry, error)
	EnqueueFinalization(ctx context.Context, market string, signatureCount, eligibleCount int, outcome uint8, thresholdMet bool) error
	TouchFinalization(ctx context.Context, market string) error
	MarkFinalizationAttempted(ctx context.Context, market, errorMessage string) error
	MarkFinalizationCompleted(ctx context.Context, market string) error
	GetAttestationsForFinalization(ctx context.Context, market string, outcome uint8) ([][]byte, []*big.Int, []string, error)
	ExpiredProposals(ctx context.Context, chainNow uint64) ([]*db.Proposal, error)
	AgedProposals(ctx context.Context, chainNow, maxAgeSeconds uint64) ([]*db.Proposal, error)
	LogSyncOperation(ctx context.Context, operation, market, status, message string) error
}

// MarketSyncer mirrors a market after a state change on chain.
type MarketSyncer interface {
	SyncMarket(ctx context.Context, market common.Address) error
}

const queueScanLimit = 50

// Service is the finalization reconciler.
type Service struct {
	chain          Chain
	store          Database
	syncer         MarketSyncer
	minSignatures  int
	maxProposalAge time.Duration
}

// New builds the finalization service.
func New(chain Chain, store Database, syncer MarketSyncer, minSignatures int, maxProposalAge time.Duration) *Service {
	return &Service{
		chain:          chain,
		store:          store,
		syncer:         syncer,
		minSignatures:  minSignatures,
		maxProposalAge: maxProposalAge,
	}
}

// ProcessQueue runs one finalization sweep over pending queue entries.
// Per-market failures are recorded on the entry and never abort the sweep.
func (s *Service) ProcessQueue(ctx context.Context) {
	chainNow, err := s.chain.ChainTime(ctx)
	if err != nil {
		log.WithError(err).Error("Could not read chain time, skipping sweep")
		return
	}
	entries, err := s.store.PendingFinalizations(ctx, queueScanLimit)
	if err != nil {
		log.WithError(err).Error("Could not scan finalization queue")
		return
	}
	for _, entry := range entries {
		s.processEntry(ctx, entry, chainNow)
	}
}

func (s *Service) processEntry(ctx context.Context, entry *db.QueueEntry, chainNow uint64) {
	market := entry.MarketAddress

	ready, reason, err := s.IsReady(ctx, market, chainNow)
	if err != nil {
		log.WithError(err).WithField("market", market).Error("Readiness check failed")
		return
	}
	if !ready {
		if err := s.store.TouchFinalization(ctx, market); err != nil {
			log.WithError(err).WithField("market", market).Warn("Could not refresh queue entry")
		}
		log.WithFields(logrus.Fields{"market": market, "reason": reason}).Debug("Market not ready")
		return
	}

	// The finalize call is not idempotent on chain; re-read live status so a
	// market resolved by someone else short-circuits to completed.
	addr := common.HexToAddress(market)
	info, err := s.chain.GetMarketInfo(ctx, addr)
	if err != nil {
		s.recordFailure(ctx, market, err)
		return
	}
	if info.Status == types.StatusResolved {
		s.recordCompleted(ctx, market, "already resolved on chain")
		return
	}

	proposal, err := s.store.GetActiveProposal(ctx, market)
	if err != nil || proposal == nil {
		log.WithError(err).WithField("market", market).Error("Active proposal vanished before finalize")
		return
	}
	signatures, nonces, signerHexes, err := s.store.GetAttestationsForFinalization(ctx, market, proposal.Outcome)
	if err != nil {
		log.WithError(err).WithField("market", market).Error("Could not assemble signature bundle")
		return
	}
	if len(signatures) == 0 {
		if err := s.store.TouchFinalization(ctx, market); err != nil {
			log.WithError(err).WithField("market", market).Warn("Could not refresh queue entry")
		}
		log.WithField("market", market).Warn("Queue entry ready but no attestations stored")
		return
	}
	signers := make([]common.Address, len(signerHexes))
	for i, h := range signerHexes {
		signers[i] = common.HexToAddress(h)
	}

	attemptsTotal.Inc()
	receipt, err := s.chain.FinalizeMarket(ctx, addr, signatures, nonces, signers)
	if err != nil {
		s.recordFailure(ctx, market, err)
		return
	}
	log.WithFields(logrus.Fields{
		"market": market,
		"tx":     receipt.TxHash.Hex(),
		"sigs":   len(signatures),
	}).Info("Market finalized")
	s.recordCompleted(ctx, market, "finalized in tx "+receipt.TxHash.Hex())
}

func (s *Service) recordFailure(ctx context.Context, market string, cause error) {
	failuresTotal.Inc()
	log.WithError(cause).WithField("market", market).Warn("Finalize attempt failed, will retry")
	if err := s.store.MarkFinalizationAttempted(ctx, market, cause.Error()); err != nil {
		log.WithError(err).WithField("market", market).Error("Could not record finalize failure")
	}
	if err := s.store.LogSyncOperation(ctx, db.OpFinalize, market, db.StatusError, cause.Error()); err != nil {
		log.WithError(err).Warn("Could not append finalize log")
	}
}

func (s *Service) recordCompleted(ctx context.Context, market, message string) {
	successesTotal.Inc()
	if err := s.store.MarkFinalizationCompleted(ctx, market); err != nil {
		log.WithError(err).WithField("market", market).Error("Could not mark finalization completed")
		return
	}
	if err := s.store.LogSyncOperation(ctx, db.OpFinalize, market, db.StatusOK, message); err != nil {
		log.WithError(err).Warn("Could not append finalize log")
	}
	// Mirror the resolved state promptly rather than waiting for the next
	// sync sweep.
	if err := s.syncer.SyncMarket(ctx, common.HexToAddress(market)); err != nil {
		log.WithError(err).WithField("market", market).Warn("Post-finalize sync failed")
	}
}

// CheckDisputeWindows enqueues every market whose dispute window has expired
// with its proposal still standing.
func (s *Service) CheckDisputeWindows(ctx context.Context) {
	chainNow, err := s.chain.ChainTime(ctx)
	if err != nil {
		log.WithError(err).Error("Could not read chain time, skipping dispute sweep")
		return
	}
	proposals, err := s.store.ExpiredProposals(ctx, chainNow)
	if err != nil {
		log.WithError(err).Error("Could not list expired proposals")
		return
	}
	for _, p := range proposals {
		if err := s.enqueueWithCounts(ctx, p); err != nil {
			log.WithError(err).WithField("market", p.MarketAddress).Warn("Could not enqueue expired proposal")
		}
	}
	if len(proposals) > 0 {
		log.WithField("count", len(proposals)).Debug("Dispute window sweep enqueued markets")
	}
}

// CheckOldProposals is the safety net for aged proposals: anything older
// than the configured maximum with at least the global minimum of
// attestations is enqueued; undercollected ones only get a warning.
func (s *Service) CheckOldProposals(ctx context.Context) {
	chainNow, err := s.chain.ChainTime(ctx)
	if err != nil {
		log.WithError(err).Error("Could not read chain time, skipping stale-proposal sweep")
		return
	}
	proposals, err := s.store.AgedProposals(ctx, chainNow, uint64(s.maxProposalAge.Seconds()))
	if err != nil {
		log.WithError(err).Error("Could not list aged proposals")
		return
	}
	for _, p := range proposals {
		count, err := s.store.CountValidAttestations(ctx, p.MarketAddress, p.Outcome)
		if err != nil {
			log.WithError(err).WithField("market", p.MarketAddress).Warn("Could not count attestations for aged proposal")
			continue
		}
		if count < s.minSignatures {
			log.WithFields(logrus.Fields{
				"market":     p.MarketAddress,
				"signatures": count,
				"required":   s.minSignatures,
			}).Warn("Aged proposal lacks signatures, not enqueueing")
			if err := s.store.LogSyncOperation(ctx, db.OpFinalize, p.MarketAddress, db.StatusWarn,
				"aged proposal below global signature minimum"); err != nil {
				log.WithError(err).Warn("Could not append stale-proposal log")
			}
			continue
		}
		if err := s.enqueueWithCounts(ctx, p); err != nil {
			log.WithError(err).WithField("market", p.MarketAddress).Warn("Could not enqueue aged proposal")
		}
	}
}

func (s *Service) enqueueWithCounts(ctx context.Context, p *db.Proposal) error {
	count, err := s.store.CountValidAttestations(ctx, p.MarketAddress, p.Outcome)
	if err != nil {
		return err
	}
	eligible, err := s.store.CountEligibleParticipants(ctx, p.MarketAddress, p.Outcome)
	if err != nil {
		return err
	}
	market, err := s.store.GetMarket(ctx, p.MarketAddress)
	if err != nil {
		return err
	}
	thresholdMet := false
	if market != nil {
		thresholdMet = count >= types.RequiredSignatures(eligible, market.Threshold, s.minSignatures)
	}
	return s.store.EnqueueFinalization(ctx, p.MarketAddress, count, eligible, p.Outcome, thresholdMet)
}
