package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/reconciler"
	"github.com/dragon-panic/nclav/pkg/store"
	"github.com/dragon-panic/nclav/pkg/store/memstore"
)

// noopDriver satisfies driver.Driver with inert responses; the tests in
// this file exercise routing and classification, not provisioning.
type noopDriver struct{}

func (noopDriver) ContextVars(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) (driver.ContextVars, error) {
	return driver.ContextVars{}, nil
}
func (noopDriver) AuthEnv(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) (driver.AuthEnv, error) {
	return driver.AuthEnv{}, nil
}
func (noopDriver) ProvisionEnclave(ctx context.Context, e domain.EnclaveDecl, existing domain.Handle) (domain.Handle, driver.Outputs, error) {
	return domain.Handle("enclave:" + e.Id), driver.Outputs{}, nil
}
func (noopDriver) TeardownEnclave(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) error {
	return nil
}
func (noopDriver) ProvisionPartition(ctx context.Context, e domain.EnclaveDecl, p domain.PartitionDecl, inputs map[string]string, existing domain.Handle) (domain.Handle, driver.Outputs, error) {
	return domain.Handle("partition:" + p.Id), driver.Outputs{}, nil
}
func (noopDriver) TeardownPartition(ctx context.Context, e domain.EnclaveDecl, p domain.PartitionDecl, h domain.Handle) error {
	return nil
}
func (noopDriver) ProvisionImport(ctx context.Context, importer domain.PartitionId, imp domain.ImportDecl, h domain.Handle, out driver.Outputs) (driver.Outputs, error) {
	return driver.Outputs{}, nil
}
func (noopDriver) ObserveEnclave(ctx context.Context, e domain.EnclaveDecl, h domain.Handle) (domain.ResourceStatus, error) {
	return domain.StatusActive, nil
}
func (noopDriver) ObservePartition(ctx context.Context, e domain.EnclaveDecl, p domain.PartitionDecl, h domain.Handle) (domain.ResourceStatus, error) {
	return domain.StatusActive, nil
}

const testToken = "test-token"

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s := memstore.New()
	registry := driver.NewRegistry(domain.CloudLocal)
	registry.Register(domain.CloudLocal, noopDriver{})
	r := reconciler.New(reconciler.Config{Store: s, Drivers: registry, WorkspaceHome: t.TempDir()})
	return NewServer(Config{Reconciler: r, Store: s, BearerToken: testToken}), s
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBearerAuth_RejectsMissingOrWrongToken(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/events", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: got status %d, want 401", rec.Code)
	}

	rec = doRequest(t, srv, "GET", "/events", "wrong-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: got status %d, want 401", rec.Code)
	}

	rec = doRequest(t, srv, "GET", "/events", testToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("correct token: got status %d, want 200", rec.Code)
	}
}

func TestHealthAndReady_AreOpen(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health without a token: got status %d, want 200", rec.Code)
	}

	rec = doRequest(t, srv, "GET", "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/ready without a token: got status %d, want 200", rec.Code)
	}
}

func TestReconcileDryRun_RoundTripsOnEmptyTree(t *testing.T) {
	srv, s := newTestServer(t)

	dir := t.TempDir()
	body, _ := json.Marshal(reconcileRequest{EnclavesDir: dir})
	rec := doRequest(t, srv, "POST", "/reconcile/dry-run", testToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("dry-run reconcile: got status %d, body %s", rec.Code, rec.Body.String())
	}

	var result reconciler.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if !result.DryRun {
		t.Error("expected DryRun to be true")
	}
	if result.HasErrors() {
		t.Errorf("expected no errors, got %v", result.Errors)
	}

	enclaves, err := s.ListEnclaves(context.Background())
	if err != nil || len(enclaves) != 0 {
		t.Errorf("dry run must never write to the store, got %v / %v", enclaves, err)
	}
}

func TestReconcile_RejectsMissingEnclavesDir(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "POST", "/reconcile", testToken, []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400 for missing enclaves_dir", rec.Code)
	}
}

// TestTFStateLock_ConflictEchoesHolder exercises the spec's lock
// conflict scenario: a second lock attempt on an already-held key gets
// a 409 with the existing holder's LockInfo echoed back.
func TestTFStateLock_ConflictEchoesHolder(t *testing.T) {
	srv, _ := newTestServer(t)
	path := "/terraform/state/acme-dev/db/lock"

	first, _ := json.Marshal(store.LockInfo{ID: "lock-a", Who: "ci-runner-1"})
	rec := doRequest(t, srv, "POST", path, testToken, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first lock: got status %d, want 200", rec.Code)
	}

	second, _ := json.Marshal(store.LockInfo{ID: "lock-b", Who: "ci-runner-2"})
	rec = doRequest(t, srv, "POST", path, testToken, second)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second lock: got status %d, want 409", rec.Code)
	}

	var held store.LockInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &held); err != nil {
		t.Fatalf("decoding echoed lock: %v", err)
	}
	if held.ID != "lock-a" || held.Who != "ci-runner-1" {
		t.Errorf("expected the first holder's lock echoed back, got %+v", held)
	}
}

func TestTFStateUnlock_MismatchedIdIsRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	path := "/terraform/state/acme-dev/db/lock"

	lock, _ := json.Marshal(store.LockInfo{ID: "lock-a", Who: "ci-runner-1"})
	doRequest(t, srv, "POST", path, testToken, lock)

	wrong, _ := json.Marshal(store.LockInfo{ID: "lock-wrong"})
	rec := doRequest(t, srv, "DELETE", path, testToken, wrong)
	if rec.Code != http.StatusConflict {
		t.Errorf("unlock with wrong id: got status %d, want 409", rec.Code)
	}

	rec = doRequest(t, srv, "DELETE", path, testToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("force unlock with empty body: got status %d, want 200", rec.Code)
	}
}

func TestTFState_PutThenGetRoundTrips(t *testing.T) {
	srv, _ := newTestServer(t)
	path := "/terraform/state/acme-dev/db"

	rec := doRequest(t, srv, "GET", path, testToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("get before put: got status %d, want 204", rec.Code)
	}

	payload := []byte(`{"version":4,"serial":1}`)
	rec = doRequest(t, srv, "POST", path, testToken, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("put state: got status %d, want 200", rec.Code)
	}

	rec = doRequest(t, srv, "GET", path, testToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get after put: got status %d, want 200", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("got body %s, want %s", rec.Body.Bytes(), payload)
	}
}

func TestWriteClassifiedError_MapsKindToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", nclaverr.NewValidationError("bad input"), http.StatusBadRequest},
		{"config", nclaverr.NewConfigError("bad config"), http.StatusBadRequest},
		{"store conflict", nclaverr.NewStoreConflict("stale generation"), http.StatusConflict},
		{"store error", nclaverr.NewStoreError("write failed"), http.StatusInternalServerError},
		{"driver error", nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "provision failed"), http.StatusInternalServerError},
		{"iac error", nclaverr.NewIacError("terraform apply failed"), http.StatusInternalServerError},
		{"lock conflict", nclaverr.NewLockConflict("already locked"), http.StatusConflict},
		{"timeout", nclaverr.NewTimeout("deadline exceeded"), http.StatusGatewayTimeout},
		{"unclassified", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeClassifiedError(rec, c.err)
			if rec.Code != c.want {
				t.Errorf("got status %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestGetEnclave_NotFoundIsA404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/enclaves/does-not-exist", testToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}
