package api

import (
	"net/http"
	"time"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, M{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Service) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "ok"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = err.Error()
	}
	chainStatus := "ok"
	if err := s.chain.Connected(ctx); err != nil {
		chainStatus = err.Error()
	}

	markets, _ := s.store.CountMarkets(ctx)
	attestations, _ := s.store.CountAttestations(ctx)
	participants, _ := s.store.CountParticipants(ctx)
	pending, _ := s.store.CountPendingFinalizations(ctx)

	writeSuccess(w, M{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"database": M{
			"status":       dbStatus,
			"markets":      markets,
			"attestations": attestations,
			"participants": participants,
		},
		"chain": M{
			"status":         chainStatus,
			"chainId":        s.chain.ChainID().String(),
			"relayerAddress": s.chain.RelayerAddress().Hex(),
		},
		"finalization": M{
			"pending": pending,
		},
	})
}

func (s *Service) handleHealthMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	byStatus, err := s.store.CountMarketsByStatus(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	statusCounts := M{}
	for status, n := range byStatus {
		statusCounts[status.String()] = n
	}

	attestations, _ := s.store.CountAttestations(ctx)
	participants, _ := s.store.CountParticipants(ctx)
	pending, _ := s.store.CountPendingFinalizations(ctx)

	logs, err := s.store.RecentSyncLogs(ctx, 10)
	if err != nil {
		writeError(w, err)
		return
	}
	logViews := make([]M, 0, len(logs))
	for _, e := range logs {
		logViews = append(logViews, syncLogView(e))
	}

	writeSuccess(w, M{
		"markets":              statusCounts,
		"attestations":         attestations,
		"participants":         participants,
		"pendingFinalizations": pending,
		"recentOperations":     logViews,
	})
}

func (s *Service) handleHealthQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.PendingFinalizations(r.Context(), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]M, 0, len(entries))
	for _, e := range entries {
		views = append(views, queueEntryView(e))
	}
	writeSuccess(w, M{"queue": views, "count": len(views)})
}
