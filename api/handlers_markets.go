package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/sidebetlabs/relayer/errcode"
)

func (s *Service) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	status, err := parseStatusQuery(q.Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit, offset, err := parseLimitOffset(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, err)
		return
	}

	markets, err := s.store.ListMarkets(ctx, status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]M, 0, len(markets))
	for _, m := range markets {
		proposal, err := s.store.GetActiveProposal(ctx, m.Address)
		if err != nil {
			writeError(w, err)
			return
		}
		views = append(views, marketView(m, proposal))
	}
	writeSuccess(w, M{
		"markets": views,
		"count":   len(views),
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Service) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := strings.ToLower(mux.Vars(r)["address"])

	market, err := s.store.GetMarket(ctx, address)
	if err != nil {
		writeError(w, err)
		return
	}
	if market == nil {
		// Unknown locally: attempt a one-shot sync before giving up.
		if err := s.syncer.SyncMarket(ctx, common.HexToAddress(address)); err != nil {
			log.WithError(err).WithField("market", address).Debug("On-demand sync failed")
		}
		if market, err = s.store.GetMarket(ctx, address); err != nil {
			writeError(w, err)
			return
		}
		if market == nil {
			writeError(w, errcode.Newf(errcode.NotFound, "unknown market %s", address))
			return
		}
	}

	proposal, err := s.store.GetActiveProposal(ctx, address)
	if err != nil {
		writeError(w, err)
		return
	}
	counts, err := s.attestations.CountsForMarket(ctx, address)
	if err != nil {
		writeError(w, err)
		return
	}
	view := marketView(market, proposal)
	view["attestations"] = M{"yes": counts.Yes, "no": counts.No}
	writeSuccess(w, M{"market": view})
}

func (s *Service) handleSyncMarket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := strings.ToLower(mux.Vars(r)["address"])

	if err := s.syncer.SyncMarket(ctx, common.HexToAddress(address)); err != nil {
		writeError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, address)
	if err != nil {
		writeError(w, err)
		return
	}
	if market == nil {
		writeError(w, errcode.Newf(errcode.NotFound, "unknown market %s", address))
		return
	}
	proposal, err := s.store.GetActiveProposal(ctx, address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, M{"market": marketView(market, proposal)})
}

func (s *Service) handleGetParticipants(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(mux.Vars(r)["address"])

	participants, err := s.store.GetParticipants(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]M, 0, len(participants))
	for _, p := range participants {
		views = append(views, participantView(p))
	}
	writeSuccess(w, M{"participants": views, "count": len(views)})
}

func (s *Service) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := strings.ToLower(mux.Vars(r)["address"])

	proposal, err := s.store.GetActiveProposal(ctx, address)
	if err != nil {
		writeError(w, err)
		return
	}
	if proposal == nil {
		writeError(w, errcode.Newf(errcode.NotFound, "market %s has no active proposal", address))
		return
	}
	outcome := proposal.Outcome
	attestations, err := s.store.GetAttestations(ctx, address, &outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]M, 0, len(attestations))
	for _, a := range attestations {
		views = append(views, attestationView(a))
	}
	writeSuccess(w, M{"proposal": proposalView(proposal), "attestations": views})
}

func (s *Service) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := strings.ToLower(mux.Vars(r)["address"])
	market := common.HexToAddress(address)

	info, err := s.chain.GetMarketInfo(ctx, market)
	if err != nil {
		writeError(w, err)
		return
	}
	view := M{
		"address":     address,
		"status":      int(info.Status),
		"statusLabel": info.Status.String(),
	}
	proposal, err := s.chain.GetProposal(ctx, market)
	if err != nil {
		writeError(w, err)
		return
	}
	if proposal != nil {
		view["proposal"] = M{
			"proposer":         strings.ToLower(proposal.Proposer.Hex()),
			"outcome":          proposal.Outcome,
			"disputeUntil":     proposal.DisputeUntil,
			"evidenceHash":     proposal.EvidenceHash,
			"attestationCount": proposal.AttestationCount,
			"isDisputed":       proposal.IsDisputed,
		}
	}
	writeSuccess(w, M{"market": view})
}

type predictAddressRequest struct {
	Topic            string `json:"topic"`
	ThresholdPercent int    `json:"thresholdPercent"`
	Token            string `json:"token"`
	MinStake         string `json:"minStake"`
	Salt             string `json:"salt"`
}

func (s *Service) handlePredictAddress(w http.ResponseWriter, r *http.Request) {
	var req predictAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errcode.New(errcode.Validation, "request body must be valid JSON"))
		return
	}
	if req.Topic == "" || len(req.Topic) > 200 {
		writeError(w, errcode.New(errcode.Validation, "topic must be 1..200 characters"))
		return
	}
	threshold, err := parseThresholdPercent(req.ThresholdPercent)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := parseAddressParam(req.Token, "token")
	if err != nil {
		writeError(w, err)
		return
	}
	minStake, err := parseAmount(req.MinStake, "minStake")
	if err != nil {
		writeError(w, err)
		return
	}
	var salt common.Hash
	if req.Salt != "" {
		if !strings.HasPrefix(req.Salt, "0x") || len(req.Salt) != 66 {
			writeError(w, errcode.New(errcode.Validation, "salt must be a 0x-prefixed 32-byte hex string"))
			return
		}
		salt = common.HexToHash(req.Salt)
	}

	predicted, err := s.chain.PredictMarketAddress(r.Context(), req.Topic, threshold,
		common.HexToAddress(token), minStake, salt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, M{"predictedAddress": strings.ToLower(predicted.Hex())})
}
