package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dragon-panic/nclav/pkg/reconciler"
)

type reconcileRequest struct {
	EnclavesDir string `json:"enclaves_dir"`
}

// handleReconcile implements POST /reconcile: spec.md §4.6's full pass.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	s.runReconcile(w, r, false)
}

// handleReconcileDryRun implements POST /reconcile/dry-run: steps 1-3
// only (load, validate, diff), never touching the store or any driver.
func (s *Server) handleReconcileDryRun(w http.ResponseWriter, r *http.Request) {
	s.runReconcile(w, r, true)
}

func (s *Server) runReconcile(w http.ResponseWriter, r *http.Request, dryRun bool) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed request body: "+err.Error())
		return
	}
	if req.EnclavesDir == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "enclaves_dir is required")
		return
	}

	result, err := s.reconciler.Reconcile(r.Context(), reconciler.Request{EnclavesDir: req.EnclavesDir, DryRun: dryRun})
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	// Per spec.md §7: 200 whenever the pass ran to completion, even if
	// individual resources failed — the per-resource errors ride in the
	// response body, not the status line.
	writeJSON(w, http.StatusOK, result)
}
