package api

import "net/http"

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"documents":   len(s.catalog.Documents),
		"cached":      s.orchestrator.Cached(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
