package finalizer

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/types"
)

const testMarket = "0x1111111111111111111111111111111111111111"

type fakeChain struct {
	now         uint64
	nowErr      error
	info        *types.MarketInfo
	infoErr     error
	finalizeErr error
	finalized   []string
}

func (f *fakeChain) ChainTime(context.Context) (uint64, error) {
	return f.now, f.nowErr
}

func (f *fakeChain) GetMarketInfo(context.Context, common.Address) (*types.MarketInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeChain) FinalizeMarket(_ context.Context, market common.Address, _ [][]byte, _ []*big.Int, _ []common.Address) (*ethtypes.Receipt, error) {
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	f.finalized = append(f.finalized, strings.ToLower(market.Hex()))
	return &ethtypes.Receipt{TxHash: common.HexToHash("0xbeef"), Status: ethtypes.ReceiptStatusSuccessful}, nil
}

type fakeStore struct {
	market   *db.Market
	proposal *db.Proposal
	pending  []*db.QueueEntry
	expired  []*db.Proposal
	aged     []*db.Proposal

	validCount    int
	eligibleCount int

	bundleSigs    [][]byte
	bundleNonces  []*big.Int
	bundleSigners []string

	touched   []string
	attempted []string
	lastError string
	completed []string
	enqueued  []string
	logged    []string
}

func (f *fakeStore) GetMarket(context.Context, string) (*db.Market, error) {
	return f.market, nil
}

func (f *fakeStore) GetActiveProposal(context.Context, string) (*db.Proposal, error) {
	return f.proposal, nil
}

func (f *fakeStore) CountValidAttestations(context.Context, string, uint8) (int, error) {
	return f.validCount, nil
}

func (f *fakeStore) CountEligibleParticipants(context.Context, string, uint8) (int, error) {
	return f.eligibleCount, nil
}

func (f *fakeStore) PendingFinalizations(context.Context, int) ([]*db.QueueEntry, error) {
	return f.pending, nil
}

func (f *fakeStore) EnqueueFinalization(_ context.Context, market string, _, _ int, _ uint8, _ bool) error {
	f.enqueued = append(f.enqueued, market)
	return nil
}

func (f *fakeStore) TouchFinalization(_ context.Context, market string) error {
	f.touched = append(f.touched, market)
	return nil
}

func (f *fakeStore) MarkFinalizationAttempted(_ context.Context, market, errorMessage string) error {
	f.attempted = append(f.attempted, market)
	f.lastError = errorMessage
	return nil
}

func (f *fakeStore) MarkFinalizationCompleted(_ context.Context, market string) error {
	f.completed = append(f.completed, market)
	return nil
}

func (f *fakeStore) GetAttestationsForFinalization(context.Context, string, uint8) ([][]byte, []*big.Int, []string, error) {
	return f.bundleSigs, f.bundleNonces, f.bundleSigners, nil
}

func (f *fakeStore) ExpiredProposals(context.Context, uint64) ([]*db.Proposal, error) {
	return f.expired, nil
}

func (f *fakeStore) AgedProposals(context.Context, uint64, uint64) ([]*db.Proposal, error) {
	return f.aged, nil
}

func (f *fakeStore) LogSyncOperation(_ context.Context, _, _, status, _ string) error {
	f.logged = append(f.logged, status)
	return nil
}

type fakeSyncer struct {
	synced []string
}

func (f *fakeSyncer) SyncMarket(_ context.Context, market common.Address) error {
	f.synced = append(f.synced, strings.ToLower(market.Hex()))
	return nil
}

func readyStore() *fakeStore {
	return &fakeStore{
		market:        &db.Market{Address: testMarket, Threshold: 60, Status: types.StatusProposed},
		proposal:      &db.Proposal{ID: 1, MarketAddress: testMarket, Outcome: 1, DisputeUntil: 1000},
		pending:       []*db.QueueEntry{{MarketAddress: testMarket}},
		validCount:    3,
		eligibleCount: 5,
		bundleSigs:    [][]byte{make([]byte, 65), make([]byte, 65), make([]byte, 65)},
		bundleNonces:  []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
		bundleSigners: []string{testMarket, testMarket, testMarket},
	}
}

func newService(chain *fakeChain, store *fakeStore, syncer *fakeSyncer) *Service {
	return New(chain, store, syncer, 3, 24*time.Hour)
}

func TestIsReady(t *testing.T) {
	chain := &fakeChain{now: 2000}
	tests := []struct {
		name   string
		mutate func(s *fakeStore)
		now    uint64
		ready  bool
		reason string
	}{
		{"ready past window", nil, 2000, true, ""},
		{"ready exactly at boundary", nil, 1000, true, ""},
		{"window still open", nil, 999, false, "dispute window open"},
		{"unknown market", func(s *fakeStore) { s.market = nil }, 2000, false, "market unknown"},
		{"terminal market", func(s *fakeStore) { s.market.Status = types.StatusResolved }, 2000, false, "market is resolved"},
		{"no proposal", func(s *fakeStore) { s.proposal = nil }, 2000, false, "no active proposal"},
		{"undercollected", func(s *fakeStore) { s.validCount = 2 }, 2000, false, "insufficient signatures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := readyStore()
			if tt.mutate != nil {
				tt.mutate(store)
			}
			svc := newService(chain, store, &fakeSyncer{})
			ready, reason, err := svc.IsReady(context.Background(), testMarket, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.ready, ready)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestProcessQueueFinalizes(t *testing.T) {
	store := readyStore()
	chain := &fakeChain{now: 2000, info: &types.MarketInfo{Status: types.StatusProposed}}
	syncer := &fakeSyncer{}
	svc := newService(chain, store, syncer)

	svc.ProcessQueue(context.Background())

	require.Equal(t, []string{testMarket}, chain.finalized)
	assert.Equal(t, []string{testMarket}, store.completed)
	assert.Equal(t, []string{testMarket}, syncer.synced, "resolved state must be mirrored promptly")
	assert.Empty(t, store.attempted)
}

func TestProcessQueueNotReadyTouchesEntry(t *testing.T) {
	store := readyStore()
	store.validCount = 1
	chain := &fakeChain{now: 2000, info: &types.MarketInfo{Status: types.StatusProposed}}
	svc := newService(chain, store, &fakeSyncer{})

	svc.ProcessQueue(context.Background())

	assert.Empty(t, chain.finalized)
	assert.Equal(t, []string{testMarket}, store.touched)
	assert.Empty(t, store.completed)
}

func TestProcessQueueAlreadyResolvedShortCircuits(t *testing.T) {
	store := readyStore()
	chain := &fakeChain{now: 2000, info: &types.MarketInfo{Status: types.StatusResolved}}
	syncer := &fakeSyncer{}
	svc := newService(chain, store, syncer)

	svc.ProcessQueue(context.Background())

	assert.Empty(t, chain.finalized, "must not submit against a resolved market")
	assert.Equal(t, []string{testMarket}, store.completed)
	assert.Equal(t, []string{testMarket}, syncer.synced)
}

func TestProcessQueueRecordsFailureAndKeepsEntry(t *testing.T) {
	store := readyStore()
	chain := &fakeChain{
		now:         2000,
		info:        &types.MarketInfo{Status: types.StatusProposed},
		finalizeErr: errors.New("execution reverted"),
	}
	svc := newService(chain, store, &fakeSyncer{})

	svc.ProcessQueue(context.Background())

	assert.Equal(t, []string{testMarket}, store.attempted)
	assert.Contains(t, store.lastError, "execution reverted")
	assert.Empty(t, store.completed, "failed attempts must stay pending for retry")
	assert.Contains(t, store.logged, db.StatusError)
}

func TestProcessQueueEmptyBundleIsNotSubmitted(t *testing.T) {
	store := readyStore()
	store.bundleSigs = nil
	store.bundleNonces = nil
	store.bundleSigners = nil
	chain := &fakeChain{now: 2000, info: &types.MarketInfo{Status: types.StatusProposed}}
	svc := newService(chain, store, &fakeSyncer{})

	svc.ProcessQueue(context.Background())

	assert.Empty(t, chain.finalized)
	assert.Equal(t, []string{testMarket}, store.touched)
}

func TestProcessQueueSkipsSweepWithoutChainTime(t *testing.T) {
	store := readyStore()
	chain := &fakeChain{nowErr: errors.New("rpc down")}
	svc := newService(chain, store, &fakeSyncer{})

	svc.ProcessQueue(context.Background())

	assert.Empty(t, chain.finalized)
	assert.Empty(t, store.touched)
}

func TestCheckDisputeWindowsEnqueues(t *testing.T) {
	store := readyStore()
	store.expired = []*db.Proposal{store.proposal}
	chain := &fakeChain{now: 2000}
	svc := newService(chain, store, &fakeSyncer{})

	svc.CheckDisputeWindows(context.Background())

	assert.Equal(t, []string{testMarket}, store.enqueued)
}

func TestCheckOldProposalsWarnsWhenUndercollected(t *testing.T) {
	store := readyStore()
	store.aged = []*db.Proposal{store.proposal}
	store.validCount = 2 // below the global minimum of 3
	chain := &fakeChain{now: 2000}
	svc := newService(chain, store, &fakeSyncer{})

	svc.CheckOldProposals(context.Background())

	assert.Empty(t, store.enqueued, "undercollected aged proposals must not be enqueued")
	assert.Contains(t, store.logged, db.StatusWarn)
}

func TestCheckOldProposalsEnqueuesCollected(t *testing.T) {
	store := readyStore()
	store.aged = []*db.Proposal{store.proposal}
	chain := &fakeChain{now: 2000}
	svc := newService(chain, store, &fakeSyncer{})

	svc.CheckOldProposals(context.Background())

	assert.Equal(t, []string{testMarket}, store.enqueued)
}
