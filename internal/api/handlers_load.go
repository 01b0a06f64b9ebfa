package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleDocumentStatus reports the load job of a document.
func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	job := s.orchestrator.GetJob(slug)
	if job == nil {
		jsonError(w, "document not loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleReload drops the cached copy of a document and queues a fresh load.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.catalog.Find(chi.URLParam(r, "slug"))
	if !ok {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	s.orchestrator.Invalidate(entry.Slug)
	job, err := s.orchestrator.Submit(entry)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("document reload queued", "slug", entry.Slug, "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"slug":     entry.Slug,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/api/documents/%s/status", entry.Slug),
	})
}
