package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidebetlabs/relayer/attestation"
	"github.com/sidebetlabs/relayer/config"
	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/errcode"
	"github.com/sidebetlabs/relayer/types"
)

const testMarketHex = "0x1111111111111111111111111111111111111111"

type fakeStore struct {
	market   *db.Market
	proposal *db.Proposal
	deleted  int64
}

func (f *fakeStore) GetMarket(context.Context, string) (*db.Market, error) {
	return f.market, nil
}

func (f *fakeStore) ListMarkets(context.Context, *types.MarketStatus, int, int) ([]*db.Market, error) {
	if f.market == nil {
		return nil, nil
	}
	return []*db.Market{f.market}, nil
}

func (f *fakeStore) CountMarkets(context.Context) (int, error) { return 1, nil }

func (f *fakeStore) CountMarketsByStatus(context.Context) (map[types.MarketStatus]int, error) {
	return map[types.MarketStatus]int{types.StatusProposed: 1}, nil
}

func (f *fakeStore) GetParticipants(context.Context, string) ([]*db.Participant, error) {
	return []*db.Participant{{MarketAddress: testMarketHex, Wallet: "0x2222222222222222222222222222222222222222", Stake: big.NewInt(50), Outcome: 1}}, nil
}

func (f *fakeStore) GetActiveProposal(context.Context, string) (*db.Proposal, error) {
	return f.proposal, nil
}

func (f *fakeStore) GetAttestations(context.Context, string, *uint8) ([]*db.Attestation, error) {
	return []*db.Attestation{{
		ID:            1,
		MarketAddress: testMarketHex,
		ProposalID:    9,
		Signer:        "0x2222222222222222222222222222222222222222",
		Outcome:       1,
		Nonce:         big.NewInt(5),
		Signature:     make([]byte, 65),
		SubmittedAt:   time.Unix(1700000000, 0),
	}}, nil
}

func (f *fakeStore) DeleteAttestations(context.Context, string) (int64, error) {
	return f.deleted, nil
}

func (f *fakeStore) CountAttestations(context.Context) (int, error)         { return 1, nil }
func (f *fakeStore) CountParticipants(context.Context) (int, error)        { return 1, nil }
func (f *fakeStore) CountPendingFinalizations(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) PendingFinalizations(context.Context, int) ([]*db.QueueEntry, error) {
	return nil, nil
}

func (f *fakeStore) RecentSyncLogs(context.Context, int) ([]*db.SyncLogEntry, error) {
	return nil, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeChain struct{}

func (f *fakeChain) Connected(context.Context) error      { return nil }
func (f *fakeChain) RelayerAddress() common.Address       { return common.Address{} }
func (f *fakeChain) ChainID() *big.Int                    { return big.NewInt(31337) }

func (f *fakeChain) GetMarketInfo(context.Context, common.Address) (*types.MarketInfo, error) {
	return &types.MarketInfo{Status: types.StatusProposed, TotalStaked: big.NewInt(0)}, nil
}

func (f *fakeChain) GetProposal(context.Context, common.Address) (*types.ChainProposal, error) {
	return nil, nil
}

func (f *fakeChain) PredictMarketAddress(context.Context, string, uint8, common.Address, *big.Int, common.Hash) (common.Address, error) {
	return common.HexToAddress("0x00000000000000000000000000000000000000aa"), nil
}

type fakeAttestations struct {
	result *attestation.Result
	err    error
	counts *attestation.Counts
}

func (f *fakeAttestations) Submit(context.Context, common.Address, string, uint8, *big.Int, []byte) (*attestation.Result, error) {
	return f.result, f.err
}

func (f *fakeAttestations) CountsForMarket(context.Context, string) (*attestation.Counts, error) {
	if f.counts == nil {
		return &attestation.Counts{}, nil
	}
	return f.counts, nil
}

type fakeSyncer struct {
	err error
}

func (f *fakeSyncer) SyncMarket(context.Context, common.Address) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		Port:                      0,
		AllowedOrigins:            []string{"*"},
		RateLimitWindow:           time.Minute,
		RateLimitMaxRequests:      1000,
		WriteRateLimitWindow:      time.Minute,
		WriteRateLimitMaxRequests: 1000,
		Environment:               "production",
	}
}

func testMarketRow() *db.Market {
	return &db.Market{
		Address:      testMarketHex,
		Topic:        "will it rain tomorrow",
		Threshold:    60,
		StakingToken: "0x3333333333333333333333333333333333333333",
		TotalStaked:  big.NewInt(100),
		Status:       types.StatusProposed,
		LastSyncedAt: time.Unix(1700000000, 0),
	}
}

type testHarness struct {
	svc          *Service
	store        *fakeStore
	attestations *fakeAttestations
	syncer       *fakeSyncer
}

func newHarness(cfg *config.Config) *testHarness {
	h := &testHarness{
		store:        &fakeStore{market: testMarketRow()},
		attestations: &fakeAttestations{},
		syncer:       &fakeSyncer{},
	}
	h.svc = New(cfg, h.store, &fakeChain{}, h.attestations, h.syncer)
	return h
}

func (h *testHarness) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, M) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	h.svc.server.Handler.ServeHTTP(rec, req)

	var decoded M
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded), "body must be JSON")
	return rec, decoded
}

func TestHealthRoute(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["status"])
}

func TestHealthDetailedRoute(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/health/detailed", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	chain, ok := body["chain"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "31337", chain["chainId"])
}

func TestListMarkets(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/api/markets", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestListMarketsRejectsBadStatus(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/api/markets?status=9", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestGetMarket(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/api/markets/"+testMarketHex, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	market, ok := body["market"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, testMarketHex, market["address"])
	assert.Equal(t, "proposed", market["statusLabel"])
}

func TestGetMarketUnknown(t *testing.T) {
	h := newHarness(testConfig())
	h.store.market = nil
	rec, body := h.do(t, http.MethodGet, "/api/markets/"+testMarketHex, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(errcode.NotFound), errBody["code"])
}

func TestGetMarketRejectsMalformedAddress(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/api/markets/0x1234", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "malformed address does not match the route")
	assert.Equal(t, false, body["success"])
}

func TestSubmitAttestation(t *testing.T) {
	h := newHarness(testConfig())
	h.attestations.result = &attestation.Result{
		AttestationID:      7,
		SignatureCount:     3,
		EligibleCount:      5,
		RequiredSignatures: 3,
		Enqueued:           true,
	}
	rec, body := h.do(t, http.MethodPost, "/api/attestations", M{
		"market":    testMarketHex,
		"signer":    "0x2222222222222222222222222222222222222222",
		"outcome":   "1",
		"nonce":     "5",
		"signature": "0x" + strings.Repeat("ab", 65),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["attestationId"])
	assert.Equal(t, true, body["queuedForFinalization"])
}

func TestSubmitAttestationValidation(t *testing.T) {
	h := newHarness(testConfig())
	tests := []struct {
		name string
		body M
	}{
		{"bad market", M{"market": "nope", "signer": testMarketHex, "outcome": "1", "nonce": "5", "signature": "0x" + strings.Repeat("ab", 65)}},
		{"bad outcome", M{"market": testMarketHex, "signer": testMarketHex, "outcome": "2", "nonce": "5", "signature": "0x" + strings.Repeat("ab", 65)}},
		{"bad nonce", M{"market": testMarketHex, "signer": testMarketHex, "outcome": "1", "nonce": "-5", "signature": "0x" + strings.Repeat("ab", 65)}},
		{"bad signature", M{"market": testMarketHex, "signer": testMarketHex, "outcome": "1", "nonce": "5", "signature": "0xabcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := h.do(t, http.MethodPost, "/api/attestations", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestSubmitAttestationDuplicate(t *testing.T) {
	h := newHarness(testConfig())
	h.attestations.err = errcode.New(errcode.Conflict, "attestation already recorded")
	rec, body := h.do(t, http.MethodPost, "/api/attestations", M{
		"market":    testMarketHex,
		"signer":    "0x2222222222222222222222222222222222222222",
		"outcome":   "1",
		"nonce":     "5",
		"signature": "0x" + strings.Repeat("ab", 65),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(errcode.Conflict), errBody["code"])
}

func TestMarketAttestationsRoute(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/api/attestations/"+testMarketHex, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	views, ok := body["attestations"].([]interface{})
	require.True(t, ok)
	first := views[0].(map[string]interface{})
	assert.Equal(t, "5", first["nonce"])
	assert.Equal(t, "0x"+strings.Repeat("00", 65), first["signature"])
}

func TestDeleteAttestationsForbiddenInProduction(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodDelete, "/api/attestations/"+testMarketHex, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestDeleteAttestationsAllowedInDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "development"
	h := newHarness(cfg)
	h.store.deleted = 4
	rec, body := h.do(t, http.MethodDelete, "/api/attestations/"+testMarketHex, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["deleted"])
}

func TestWriteTierRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.WriteRateLimitMaxRequests = 2
	h := newHarness(cfg)
	h.attestations.err = errcode.New(errcode.NoActiveProposal, "no proposal")

	payload := M{
		"market":    testMarketHex,
		"signer":    "0x2222222222222222222222222222222222222222",
		"outcome":   "1",
		"nonce":     "5",
		"signature": "0x" + strings.Repeat("ab", 65),
	}
	rec, _ := h.do(t, http.MethodPost, "/api/attestations", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/api/attestations", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := h.do(t, http.MethodPost, "/api/attestations", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody["code"])
}

func TestPredictAddress(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodPost, "/api/markets/predict-address", M{
		"topic":            "will it rain tomorrow",
		"thresholdPercent": 60,
		"token":            "0x3333333333333333333333333333333333333333",
		"minStake":         "1000",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", body["predictedAddress"])
}

func TestPredictAddressRejectsLowThreshold(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodPost, "/api/markets/predict-address", M{
		"topic":            "will it rain tomorrow",
		"thresholdPercent": 50,
		"token":            "0x3333333333333333333333333333333333333333",
		"minStake":         "1000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestUnknownRouteEnvelope(t *testing.T) {
	h := newHarness(testConfig())
	rec, body := h.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}
