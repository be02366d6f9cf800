// Package api exposes the relayer's HTTP surface: health probes, market and
// attestation routes, and the prometheus endpoint. The layer is thin; it
// validates requests, applies rate limits and maps service errors onto the
// response envelope.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/sidebetlabs/relayer/attestation"
	"github.com/sidebetlabs/relayer/config"
	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/types"
)

var log = logrus.WithField("prefix", "api")

// Store is the read/write surface of the database the handlers use.
type Store interface {
	GetMarket(ctx context.Context, address string) (*db.Market, error)
	ListMarkets(ctx context.Context, status *types.MarketStatus, limit, offset int) ([]*db.Market, error)
	CountMarkets(ctx context.Context) (int, error)
	CountMarketsByStatus(ctx context.Context) (map[types.MarketStatus]int, error)
	GetParticipants(ctx context.Context, market string) ([]*db.Participant, error)
	GetActiveProposal(ctx context.Context, market string) (*db.Proposal, error)
	GetAttestations(ctx context.Context, market string, outcome *uint8) ([]*db.Attestation, error)
	DeleteAttestations(ctx context.Context, market string) (int64, error)
	CountAttestations(ctx context.Context) (int, error)
	CountParticipants(ctx context.Context) (int, error)
	CountPendingFinalizations(ctx context.Context) (int, error)
	PendingFinalizations(ctx context.Context, limit int) ([]*db.QueueEntry, error)
	RecentSyncLogs(ctx context.Context, limit int) ([]*db.SyncLogEntry, error)
	Ping(ctx context.Context) error
}

// Chain is the gateway surface the handlers use.
type Chain interface {
	Connected(ctx context.Context) error
	RelayerAddress() common.Address
	ChainID() *big.Int
	GetMarketInfo(ctx context.Context, market common.Address) (*types.MarketInfo, error)
	GetProposal(ctx context.Context, market common.Address) (*types.ChainProposal, error)
	PredictMarketAddress(ctx context.Context, topic string, threshold uint8, token common.Address, minStake *big.Int, salt common.Hash) (common.Address, error)
}

// Attestations is the signature service surface.
type Attestations interface {
	Submit(ctx context.Context, market common.Address, signer string, outcome uint8, nonce *big.Int, signature []byte) (*attestation.Result, error)
	CountsForMarket(ctx context.Context, market string) (*attestation.Counts, error)
}

// Syncer triggers one-shot market syncs.
type Syncer interface {
	SyncMarket(ctx context.Context, market common.Address) error
}

// Service serves the HTTP API. Implements runtime.Service.
type Service struct {
	cfg          *config.Config
	store        Store
	chain        Chain
	attestations Attestations
	syncer       Syncer

	server       *http.Server
	started      time.Time
	defaultTier  *rateLimiter
	writeTier    *rateLimiter
	startFailure error
}

// New builds the API service and its router.
func New(cfg *config.Config, store Store, chainGateway Chain, attestations Attestations, syncer Syncer) *Service {
	s := &Service{
		cfg:          cfg,
		store:        store,
		chain:        chainGateway,
		attestations: attestations,
		syncer:       syncer,
		defaultTier:  newRateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow),
		writeTier:    newRateLimiter(cfg.WriteRateLimitMaxRequests, cfg.WriteRateLimitWindow),
	}

	router := mux.NewRouter()
	s.registerRoutes(router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

const addressPattern = "{address:0[xX][0-9a-fA-F]{40}}"

func (s *Service) registerRoutes(router *mux.Router) {
	// Health routes bypass rate limiting.
	router.HandleFunc("/health", instrument("/health", s.handleHealth)).Methods(http.MethodGet)
	router.HandleFunc("/health/detailed", instrument("/health/detailed", s.handleHealthDetailed)).Methods(http.MethodGet)
	router.HandleFunc("/health/metrics", instrument("/health/metrics", s.handleHealthMetrics)).Methods(http.MethodGet)
	router.HandleFunc("/health/queue", instrument("/health/queue", s.handleHealthQueue)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	read := func(route string, h http.HandlerFunc) http.HandlerFunc {
		return instrument(route, s.defaultTier.wrap(h))
	}
	write := func(route string, h http.HandlerFunc) http.HandlerFunc {
		return instrument(route, s.writeTier.wrap(h))
	}

	// Fixed paths before the address-parameterized ones.
	router.HandleFunc("/api/markets/predict-address",
		read("/api/markets/predict-address", s.handlePredictAddress)).Methods(http.MethodPost)
	router.HandleFunc("/api/markets",
		read("/api/markets", s.handleListMarkets)).Methods(http.MethodGet)
	router.HandleFunc("/api/markets/"+addressPattern,
		read("/api/markets/:address", s.handleGetMarket)).Methods(http.MethodGet)
	router.HandleFunc("/api/markets/"+addressPattern+"/sync",
		write("/api/markets/:address/sync", s.handleSyncMarket)).Methods(http.MethodPost)
	router.HandleFunc("/api/markets/"+addressPattern+"/participants",
		read("/api/markets/:address/participants", s.handleGetParticipants)).Methods(http.MethodGet)
	router.HandleFunc("/api/markets/"+addressPattern+"/proposal",
		read("/api/markets/:address/proposal", s.handleGetProposal)).Methods(http.MethodGet)
	router.HandleFunc("/api/markets/"+addressPattern+"/status",
		read("/api/markets/:address/status", s.handleMarketStatus)).Methods(http.MethodGet)

	router.HandleFunc("/api/attestations",
		write("/api/attestations", s.handleSubmitAttestation)).Methods(http.MethodPost)
	router.HandleFunc("/api/attestations",
		read("/api/attestations", s.handleListAttestations)).Methods(http.MethodGet)
	router.HandleFunc("/api/attestations/"+addressPattern,
		read("/api/attestations/:market", s.handleMarketAttestations)).Methods(http.MethodGet)
	router.HandleFunc("/api/attestations/"+addressPattern+"/count",
		read("/api/attestations/:market/count", s.handleAttestationCount)).Methods(http.MethodGet)
	router.HandleFunc("/api/attestations/"+addressPattern,
		write("/api/attestations/:market", s.handleDeleteAttestations)).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, M{
			"success": false,
			"error":   M{"message": "route not found", "code": "NOT_FOUND"},
		})
	})
}

// Start begins serving. Blocks in the http server's accept loop.
func (s *Service) Start() {
	s.started = time.Now()
	log.WithField("addr", s.server.Addr).Info("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.startFailure = err
		log.WithError(err).Error("HTTP server terminated")
	}
}

// Stop drains in-flight requests within the shutdown grace period.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status surfaces a failed listener.
func (s *Service) Status() error {
	return s.startFailure
}
