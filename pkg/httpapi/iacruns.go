package httpapi

import (
	"net/http"

	"github.com/dragon-panic/nclav/pkg/domain"
)

// handleListIacRuns implements GET /enclaves/{id}/partitions/{part}/iac/runs.
func (s *Server) handleListIacRuns(w http.ResponseWriter, r *http.Request) {
	enclaveId := domain.EnclaveId(r.PathValue("id"))
	partitionId := domain.PartitionId(r.PathValue("part"))

	runs, err := s.store.ListIacRuns(r.Context(), enclaveId, partitionId)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleLatestIacRun implements .../iac/runs/latest: the first entry of
// ListIacRuns, which is already ordered most-recent-first.
func (s *Server) handleLatestIacRun(w http.ResponseWriter, r *http.Request) {
	enclaveId := domain.EnclaveId(r.PathValue("id"))
	partitionId := domain.PartitionId(r.PathValue("part"))

	runs, err := s.store.ListIacRuns(r.Context(), enclaveId, partitionId)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	if len(runs) == 0 {
		writeError(w, http.StatusNotFound, "NotFound", "no iac runs recorded for this partition")
		return
	}
	writeJSON(w, http.StatusOK, runs[0])
}

// handleGetIacRun implements .../iac/runs/{runId}.
func (s *Server) handleGetIacRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetIacRun(r.Context(), r.PathValue("runId"))
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "NotFound", "iac run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
