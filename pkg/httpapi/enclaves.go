package httpapi

import (
	"net/http"

	"github.com/dragon-panic/nclav/pkg/domain"
)

type enclaveView struct {
	Enclave    *domain.EnclaveRecord    `json:"enclave"`
	Partitions []domain.PartitionRecord `json:"partitions"`
}

// handleGetEnclave implements GET /enclaves/{id}. With ?observe=true it
// calls observe_enclave/observe_partition per spec.md §4.6's observe
// path; otherwise it returns applied state as last written.
func (s *Server) handleGetEnclave(w http.ResponseWriter, r *http.Request) {
	id := domain.EnclaveId(r.PathValue("id"))

	if r.URL.Query().Get("observe") == "true" {
		result, err := s.reconciler.Observe(r.Context(), id)
		if err != nil {
			writeClassifiedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	rec, err := s.store.GetEnclave(r.Context(), id)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "NotFound", "enclave not found")
		return
	}
	parts, err := s.store.ListPartitions(r.Context(), id)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enclaveView{Enclave: rec, Partitions: parts})
}

// handleDeleteEnclave implements the declarative teardown shortcut
// DELETE /enclaves/{id}.
func (s *Server) handleDeleteEnclave(w http.ResponseWriter, r *http.Request) {
	id := domain.EnclaveId(r.PathValue("id"))
	result, err := s.reconciler.TeardownEnclave(r.Context(), id)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeletePartition implements DELETE /enclaves/{id}/partitions/{part}.
func (s *Server) handleDeletePartition(w http.ResponseWriter, r *http.Request) {
	enclaveId := domain.EnclaveId(r.PathValue("id"))
	partitionId := domain.PartitionId(r.PathValue("part"))
	if err := s.reconciler.TeardownPartition(r.Context(), enclaveId, partitionId); err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
