package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/sidebetlabs/relayer/errcode"
)

type submitAttestationRequest struct {
	Market    string `json:"market"`
	Signer    string `json:"signer"`
	Outcome   string `json:"outcome"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func (s *Service) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	var req submitAttestationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errcode.New(errcode.Validation, "request body must be valid JSON"))
		return
	}
	market, err := parseAddressParam(req.Market, "market")
	if err != nil {
		writeError(w, err)
		return
	}
	signer, err := parseAddressParam(req.Signer, "signer")
	if err != nil {
		writeError(w, err)
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	nonce, err := parseNonce(req.Nonce)
	if err != nil {
		writeError(w, err)
		return
	}
	signature, err := parseSignature(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.attestations.Submit(r.Context(), common.HexToAddress(market),
		strings.ToLower(signer), outcome, nonce, signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, M{
		"attestationId":      result.AttestationID,
		"signatureCount":     result.SignatureCount,
		"eligibleCount":      result.EligibleCount,
		"requiredSignatures": result.RequiredSignatures,
		"queuedForFinalization": result.Enqueued,
	})
}

func (s *Service) handleListAttestations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	market, err := parseAddressParam(q.Get("market"), "market")
	if err != nil {
		writeError(w, err)
		return
	}
	var outcome *uint8
	if raw := q.Get("outcome"); raw != "" {
		o, err := parseOutcome(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		outcome = &o
	}
	s.listAttestations(w, r, strings.ToLower(market), outcome)
}

func (s *Service) handleMarketAttestations(w http.ResponseWriter, r *http.Request) {
	s.listAttestations(w, r, strings.ToLower(mux.Vars(r)["address"]), nil)
}

func (s *Service) listAttestations(w http.ResponseWriter, r *http.Request, market string, outcome *uint8) {
	attestations, err := s.store.GetAttestations(r.Context(), market, outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]M, 0, len(attestations))
	for _, a := range attestations {
		views = append(views, attestationView(a))
	}
	writeSuccess(w, M{"attestations": views, "count": len(views)})
}

func (s *Service) handleAttestationCount(w http.ResponseWriter, r *http.Request) {
	market := strings.ToLower(mux.Vars(r)["address"])

	counts, err := s.attestations.CountsForMarket(r.Context(), market)
	if err != nil {
		writeError(w, err)
		return
	}
	payload := M{
		"market": market,
		"yes":    counts.Yes,
		"no":     counts.No,
	}
	if counts.ProposalOutcome != nil {
		payload["proposalOutcome"] = *counts.ProposalOutcome
		payload["eligibleCount"] = counts.EligibleCount
		payload["requiredSignatures"] = counts.RequiredSignatures
	}
	writeSuccess(w, payload)
}

func (s *Service) handleDeleteAttestations(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Development() {
		writeJSON(w, http.StatusForbidden, M{
			"success": false,
			"error":   M{"message": "attestation deletion is only available in development", "code": "FORBIDDEN"},
		})
		return
	}
	market := strings.ToLower(mux.Vars(r)["address"])
	removed, err := s.store.DeleteAttestations(r.Context(), market)
	if err != nil {
		writeError(w, err)
		return
	}
	log.WithFields(logrus.Fields{"market": market, "removed": removed}).
		Warn("Deleted attestations (development mode)")
	writeSuccess(w, M{"deleted": removed})
}
