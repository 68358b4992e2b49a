package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("returns 200 for GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.handleHealth(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("returns a valid healthResponse", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.handleHealth(w, req)

		var resp healthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "nclavd", resp.Service)

		_, err := time.Parse(time.RFC3339, resp.Timestamp)
		assert.NoError(t, err, "timestamp should be RFC3339")
	})
}

func TestHandleReady(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	srv.handleReady(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ready", resp.Status)
}
