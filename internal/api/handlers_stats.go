package api

import (
	"net/http"
)

func (s *Server) handleInferenceStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "inference stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"default_model": s.cfg.DefaultModel,
		"embed_model":   s.cfg.EmbedModel,
		"queue_depth":   s.orchestrator.QueueDepth(),
		"stats":         s.stats.Snapshot(),
	})
}
