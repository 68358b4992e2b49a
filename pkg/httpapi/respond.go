package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: kind, Message: message})
}

// writeClassifiedError maps a nclaverr.Error's Kind to an HTTP status
// per spec.md §7's taxonomy; an unclassified error is a 500.
func writeClassifiedError(w http.ResponseWriter, err error) {
	var e *nclaverr.Error
	if !errors.As(err, &e) {
		writeError(w, http.StatusInternalServerError, "Error", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case nclaverr.KindValidation:
		status = http.StatusBadRequest
	case nclaverr.KindConfig:
		status = http.StatusBadRequest
	case nclaverr.KindStoreConflict:
		status = http.StatusConflict
	case nclaverr.KindStoreError:
		status = http.StatusInternalServerError
	case nclaverr.KindDriverError:
		status = http.StatusInternalServerError
	case nclaverr.KindIacError:
		status = http.StatusInternalServerError
	case nclaverr.KindLockConflict:
		status = http.StatusConflict
	case nclaverr.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, string(e.Kind), e.Error())
}
