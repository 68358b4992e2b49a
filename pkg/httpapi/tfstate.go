package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/store"
)

func (s *Server) stateKey(r *http.Request) string {
	return store.TFStateKey(domain.EnclaveId(r.PathValue("enclave")), domain.PartitionId(r.PathValue("partition")))
}

// handleGetState implements GET /terraform/state/{enclave}/{partition}
// of the Terraform HTTP backend protocol: 200 with the opaque state
// blob, or 204 when none exists.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.GetTFState(r.Context(), s.stateKey(r))
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handlePutState implements POST /terraform/state/{enclave}/{partition}:
// the body is stored verbatim, opaque to the server.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "reading request body: "+err.Error())
		return
	}
	if err := s.store.PutTFState(r.Context(), s.stateKey(r), body); err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDeleteState implements DELETE /terraform/state/{enclave}/{partition}.
func (s *Server) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTFState(r.Context(), s.stateKey(r)); err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleLockState implements POST .../lock: 200 if acquired, 409 with
// the existing holder's lock info echoed back if already held.
func (s *Server) handleLockState(w http.ResponseWriter, r *http.Request) {
	var info store.LockInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed lock info: "+err.Error())
		return
	}

	key := s.stateKey(r)
	if err := s.store.LockTFState(r.Context(), key, info); err != nil {
		if nclaverr.IsLockConflict(err) {
			if s.tel != nil {
				s.tel.Metrics.RecordTFLockConflict()
			}
			existing, getErr := s.store.GetTFLock(r.Context(), key)
			if getErr == nil && existing != nil {
				writeJSON(w, http.StatusConflict, existing)
				return
			}
		}
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleUnlockState implements DELETE .../lock: an empty body
// force-unlocks; a body carrying the holder's ID releases only if it
// matches.
func (s *Server) handleUnlockState(w http.ResponseWriter, r *http.Request) {
	var info store.LockInfo
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "reading request body: "+err.Error())
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &info); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "malformed lock info: "+err.Error())
			return
		}
	}

	if err := s.store.UnlockTFState(r.Context(), s.stateKey(r), info.ID); err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
