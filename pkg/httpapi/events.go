package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/store"
)

const defaultEventLimit = 100

// handleListEvents implements GET /events, the audit log read path.
// Optional ?enclave=, ?partition=, and ?limit= query params narrow it.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		EnclaveId:   domain.EnclaveId(r.URL.Query().Get("enclave")),
		PartitionId: domain.PartitionId(r.URL.Query().Get("partition")),
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.store.ListEvents(r.Context(), filter, limit)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
