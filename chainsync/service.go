// Package chainsync reconciles on-chain market state into the store. The
// chain is authoritative; every write here is an upsert so overlapping syncs
// of the same market converge.
package chainsync

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/errcode"
	"github.com/sidebetlabs/relayer/types"
)

var log = logrus.WithField("prefix", "sync")

// ChainReader is the read-only slice of the chain gateway this service uses.
type ChainReader interface {
	GetMarketInfo(ctx context.Context, market common.Address) (*types.MarketInfo, error)
	GetProposal(ctx context.Context, market common.Address) (*types.ChainProposal, error)
	GetParticipants(ctx context.Context, market common.Address) ([]types.ChainParticipant, error)
	GetAllMarkets(ctx context.Context) ([]common.Address, error)
}

// Database is the slice of the store this service writes through.
type Database interface {
	UpsertMarket(ctx context.Context, info *types.MarketInfo) error
	UpsertParticipant(ctx context.Context, market, wallet string, stake *big.Int, outcome uint8, hasAttested bool) error
	CreateProposal(ctx context.Context, p *db.Proposal) (bool, error)
	GetActiveProposal(ctx context.Context, market string) (*db.Proposal, error)
	MarkProposalDisputed(ctx context.Context, proposalID int64) error
	StaleMarketAddresses(ctx context.Context, staleness time.Duration) ([]string, error)
	AllMarketAddresses(ctx context.Context) ([]string, error)
	LogSyncOperation(ctx context.Context, operation, market, status, message string) error
}

// Service pulls authoritative chain state into the store.
type Service struct {
	chain     ChainReader
	store     Database
	staleness time.Duration
}

// New builds a sync service.
func New(chain ChainReader, store Database, staleness time.Duration) *Service {
	return &Service{chain: chain, store: store, staleness: staleness}
}

// SyncMarket reconciles one market. Market info, proposal and participants
// are fetched in parallel; whatever succeeded is written even when a subcall
// fails, and the failure is recorded in the sync log.
func (s *Service) SyncMarket(ctx context.Context, market common.Address) error {
	addr := strings.ToLower(market.Hex())

	var (
		info         *types.MarketInfo
		proposal     *types.ChainProposal
		participants []types.ChainParticipant
	)
	var infoErr, proposalErr, participantsErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, infoErr = s.chain.GetMarketInfo(gctx, market)
		return nil
	})
	g.Go(func() error {
		proposal, proposalErr = s.chain.GetProposal(gctx, market)
		return nil
	})
	g.Go(func() error {
		participants, participantsErr = s.chain.GetParticipants(gctx, market)
		return nil
	})
	_ = g.Wait() // subcall errors are collected individually above.

	var failed []string
	if infoErr != nil {
		failed = append(failed, "getMarketInfo")
	} else if err := s.store.UpsertMarket(ctx, info); err != nil {
		return errors.Wrap(err, "could not mirror market")
	}

	if proposalErr != nil {
		failed = append(failed, "getProposal")
	} else if proposal != nil {
		if err := s.mirrorProposal(ctx, addr, proposal); err != nil {
			return errors.Wrap(err, "could not mirror proposal")
		}
	}

	if participantsErr != nil {
		failed = append(failed, "getParticipants")
	} else {
		for _, p := range participants {
			if err := s.store.UpsertParticipant(ctx, addr, strings.ToLower(p.Wallet.Hex()), p.Stake, p.Outcome, p.HasAttested); err != nil {
				return errors.Wrap(err, "could not mirror participant")
			}
		}
	}

	if len(failed) > 0 {
		firstErr := infoErr
		if firstErr == nil {
			firstErr = proposalErr
		}
		if firstErr == nil {
			firstErr = participantsErr
		}
		msg := fmt.Sprintf("subcalls failed: %s: %v", strings.Join(failed, ","), firstErr)
		if logErr := s.store.LogSyncOperation(ctx, db.OpSync, addr, db.StatusError, msg); logErr != nil {
			log.WithError(logErr).Warn("Could not record sync failure")
		}
		syncRunsTotal.WithLabelValues("error").Inc()
		return errcode.Wrap(firstErr, errcode.KindOf(firstErr), "market sync incomplete")
	}

	if err := s.store.LogSyncOperation(ctx, db.OpSync, addr, db.StatusOK, ""); err != nil {
		log.WithError(err).Warn("Could not record sync success")
	}
	syncRunsTotal.WithLabelValues("ok").Inc()
	log.WithField("market", addr).Debug("Market synced")
	return nil
}

// mirrorProposal creates the proposal row when no active one exists and
// mirrors a chain-side dispute onto the stored row.
func (s *Service) mirrorProposal(ctx context.Context, market string, chainProposal *types.ChainProposal) error {
	active, err := s.store.GetActiveProposal(ctx, market)
	if err != nil {
		return err
	}
	if active == nil {
		if chainProposal.IsDisputed {
			// Disputed before we ever mirrored it; nothing to track.
			return nil
		}
		created, err := s.store.CreateProposal(ctx, &db.Proposal{
			MarketAddress:  market,
			Proposer:       strings.ToLower(chainProposal.Proposer.Hex()),
			Outcome:        chainProposal.Outcome,
			DisputeUntil:   chainProposal.DisputeUntil,
			EvidenceHash:   chainProposal.EvidenceHash,
			CreatedAtChain: chainProposal.CreatedAt,
		})
		if err != nil {
			return err
		}
		if created {
			log.WithFields(logrus.Fields{
				"market":  market,
				"outcome": chainProposal.Outcome,
			}).Info("New proposal mirrored")
		}
		return nil
	}
	if chainProposal.IsDisputed && !active.IsDisputed {
		return s.store.MarkProposalDisputed(ctx, active.ID)
	}
	return nil
}

// SyncStaleMarkets refreshes every market whose mirror is older than the
// configured staleness. Per-market failures are isolated.
func (s *Service) SyncStaleMarkets(ctx context.Context) {
	stale, err := s.store.StaleMarketAddresses(ctx, s.staleness)
	if err != nil {
		log.WithError(err).Error("Could not list stale markets")
		return
	}
	for _, addr := range stale {
		if err := s.SyncMarket(ctx, common.HexToAddress(addr)); err != nil {
			log.WithError(err).WithField("market", addr).Warn("Stale market sync failed")
		}
	}
	if len(stale) > 0 {
		log.WithField("count", len(stale)).Debug("Stale market sweep finished")
	}
}

// DiscoverNewMarkets pulls the factory's market list and syncs any address
// the store has not seen.
func (s *Service) DiscoverNewMarkets(ctx context.Context) {
	onChain, err := s.chain.GetAllMarkets(ctx)
	if err != nil {
		log.WithError(err).Error("Could not list factory markets")
		if logErr := s.store.LogSyncOperation(ctx, db.OpDiscover, "", db.StatusError, err.Error()); logErr != nil {
			log.WithError(logErr).Warn("Could not record discovery failure")
		}
		return
	}
	known, err := s.store.AllMarketAddresses(ctx)
	if err != nil {
		log.WithError(err).Error("Could not list known markets")
		return
	}
	seen := make(map[string]struct{}, len(known))
	for _, addr := range known {
		seen[addr] = struct{}{}
	}

	discovered := 0
	for _, market := range onChain {
		addr := strings.ToLower(market.Hex())
		if _, ok := seen[addr]; ok {
			continue
		}
		if err := s.SyncMarket(ctx, market); err != nil {
			log.WithError(err).WithField("market", addr).Warn("Could not sync discovered market")
			continue
		}
		discovered++
	}
	if discovered > 0 {
		log.WithField("count", discovered).Info("Discovered new markets")
	}
}
