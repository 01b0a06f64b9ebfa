package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/pipeline"
)

type documentSummary struct {
	catalog.Entry
	Speed         string `json:"speed"`
	TOCRevealMode string `json:"toc_reveal_mode"`
	Status        string `json:"status,omitempty"`
}

// handleListDocuments lists the catalog with effective defaults filled in.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := make([]documentSummary, 0, len(s.catalog.Documents))
	for _, e := range s.catalog.Documents {
		sum := documentSummary{
			Entry:         e,
			Speed:         string(e.Speed()),
			TOCRevealMode: string(e.Policy()),
		}
		if job := s.orchestrator.GetJob(e.Slug); job != nil {
			sum.Status = string(job.Snapshot().Status)
		}
		docs = append(docs, sum)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleGetDocument returns the parsed document with the reveal units of every
// section, loading it on first use.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	res, ok := s.ensure(w, r)
	if !ok {
		return
	}
	etag := `"` + res.Doc.Hash + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRawDocument returns the markdown the document was parsed from.
func (s *Server) handleRawDocument(w http.ResponseWriter, r *http.Request) {
	res, ok := s.ensure(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(res.Markdown))
}

func (s *Server) ensure(w http.ResponseWriter, r *http.Request) (*pipeline.Prepared, bool) {
	entry, ok := s.catalog.Find(chi.URLParam(r, "slug"))
	if !ok {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	res, err := s.orchestrator.Ensure(r.Context(), entry)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, r.Context().Err()) {
			status = http.StatusRequestTimeout
		}
		s.log.Warn("document unavailable", "slug", entry.Slug, "error", err)
		jsonError(w, err.Error(), status)
		return nil, false
	}
	return res, true
}

// handleMedia returns the gallery configured for a section.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	gal, ok := s.catalog.Media[chi.URLParam(r, "sectionID")]
	if !ok {
		jsonError(w, "no media for section", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, gal)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
