package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.llmStats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"models": map[string]string{
			"routing":   s.cfg.RoutingModel,
			"selection": s.cfg.SelectionModel,
			"answer":    s.cfg.AnswerModel,
		},
		"stats": s.llmStats.Snapshot(),
	})
}
