package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/multierr"

	"github.com/dgallion1/zenview/internal/reveal"
)

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.prefs.Get())
}

type prefsUpdate struct {
	Speed   *string `json:"speed"`
	Instant *bool   `json:"instant"`
	Theme   *string `json:"theme"`
}

// handlePutPrefs applies the fields present in the body. Every invalid field
// is reported.
func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	var req prefsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	var errs error
	if req.Speed != nil {
		sp, err := reveal.ParseSpeed(*req.Speed)
		if err == nil {
			err = s.prefs.SetSpeed(sp)
		}
		errs = multierr.Append(errs, err)
	}
	if req.Theme != nil {
		errs = multierr.Append(errs, s.prefs.SetTheme(*req.Theme))
	}
	if req.Instant != nil && *req.Instant != s.prefs.Get().Instant {
		_, err := s.prefs.ToggleInstant()
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		jsonError(w, errs.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.prefs.Get())
}
