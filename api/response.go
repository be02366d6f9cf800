package api

import (
	"encoding/json"
	"net/http"

	"github.com/sidebetlabs/relayer/errcode"
)

// M is a response payload. Every success body carries "success": true at the
// top level; writeSuccess injects it.
type M map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("Could not write response body")
	}
}

func writeSuccess(w http.ResponseWriter, payload M) {
	payload["success"] = true
	writeJSON(w, http.StatusOK, payload)
}

func statusForKind(kind errcode.Kind) int {
	switch kind {
	case errcode.Validation, errcode.SignatureInvalid, errcode.NotParticipant,
		errcode.OutcomeMismatch, errcode.NoActiveProposal:
		return http.StatusBadRequest
	case errcode.NotFound:
		return http.StatusNotFound
	case errcode.Conflict:
		return http.StatusConflict
	case errcode.RateLimited:
		return http.StatusTooManyRequests
	case errcode.ChainUnavailable, errcode.ContractCall:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps an error's taxonomy kind onto an HTTP status and a stable
// code. Internal details never leak to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := errcode.KindOf(err)
	message := err.Error()
	if kind == errcode.Internal {
		log.WithError(err).Error("Request failed")
		message = "internal server error"
	}
	writeJSON(w, statusForKind(kind), M{
		"success": false,
		"error":   M{"message": message, "code": string(kind)},
	})
}
