package sqlitestore

import (
	"context"
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	return s
}

func TestStoreLifecycle(t *testing.T) {
	s := setupTestStore(t)

	ctx := context.Background()
	if err := s.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreMigrations(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	ctx := context.Background()
	tables := []string{"enclaves", "partitions", "events", "iac_runs", "tf_state", "tf_locks"}
	for _, table := range tables {
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestUpsertEnclave_OptimisticConcurrency(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()

	rec := domain.EnclaveRecord{Decl: domain.EnclaveDecl{Id: "prod"}}

	gen, err := s.UpsertEnclave(ctx, rec, 0)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if gen != 1 {
		t.Errorf("expected generation 1, got %d", gen)
	}

	rec.Meta.Generation = gen
	gen2, err := s.UpsertEnclave(ctx, rec, gen)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if gen2 != 2 {
		t.Errorf("expected generation 2, got %d", gen2)
	}

	_, err = s.UpsertEnclave(ctx, rec, 1)
	if !nclaverr.IsStoreConflict(err) {
		t.Errorf("expected StoreConflict for stale generation, got %v", err)
	}

	got, err := s.GetEnclave(ctx, "prod")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Meta.Generation != 2 {
		t.Errorf("expected persisted generation 2, got %+v", got)
	}
}

func TestDeleteEnclave_GenerationMismatch(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()

	rec := domain.EnclaveRecord{Decl: domain.EnclaveDecl{Id: "dev"}}
	if _, err := s.UpsertEnclave(ctx, rec, 0); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.DeleteEnclave(ctx, "dev", 99); !nclaverr.IsStoreConflict(err) {
		t.Errorf("expected StoreConflict, got %v", err)
	}
	if err := s.DeleteEnclave(ctx, "dev", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := s.GetEnclave(ctx, "dev")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected enclave to be gone, got %+v", got)
	}
}

func TestLockTFState_ConflictAndUnlock(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()
	key := store.TFStateKey("acme-dev", "db")

	if err := s.LockTFState(ctx, key, store.LockInfo{ID: "lock-1"}); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	if err := s.LockTFState(ctx, key, store.LockInfo{ID: "lock-2"}); !nclaverr.IsLockConflict(err) {
		t.Errorf("expected LockConflict on second acquisition, got %v", err)
	}

	if err := s.UnlockTFState(ctx, key, "wrong-id"); !nclaverr.IsLockConflict(err) {
		t.Errorf("expected LockConflict on mismatched unlock, got %v", err)
	}

	if err := s.UnlockTFState(ctx, key, "lock-1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if err := s.LockTFState(ctx, key, store.LockInfo{ID: "lock-3"}); err != nil {
		t.Fatalf("lock after unlock: %v", err)
	}
}

func TestTFState_PutGetDelete(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()
	key := store.TFStateKey("acme-dev", "db")

	if got, err := s.GetTFState(ctx, key); err != nil || got != nil {
		t.Fatalf("expected no state yet, got %v err %v", got, err)
	}

	if err := s.PutTFState(ctx, key, []byte(`{"version":4}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetTFState(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"version":4}` {
		t.Errorf("unexpected state payload: %s", got)
	}

	if err := s.DeleteTFState(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, err := s.GetTFState(ctx, key); err != nil || got != nil {
		t.Fatalf("expected state deleted, got %v err %v", got, err)
	}
}

func TestAppendIacRun_UpsertByIdPreservesOrder(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := domain.IacRun{
			Id: string(rune('a' + i)), EnclaveId: "e", PartitionId: "p",
			Operation: domain.IacProvision, Status: domain.IacRunRunning,
		}
		if err := s.AppendIacRun(ctx, run); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Updating an existing run must not shift its position in history.
	updated := domain.IacRun{
		Id: "a", EnclaveId: "e", PartitionId: "p",
		Operation: domain.IacProvision, Status: domain.IacRunSucceeded,
	}
	if err := s.AppendIacRun(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	runs, err := s.ListIacRuns(ctx, "e", "p")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Id != "c" {
		t.Errorf("expected newest-first ordering, got first id %q", runs[0].Id)
	}

	got, err := s.GetIacRun(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Status != domain.IacRunSucceeded {
		t.Errorf("expected updated status, got %+v", got)
	}
}

func TestListEvents_Filter(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if _, err := s.AppendEvent(ctx, domain.Event{EnclaveId: "a", Kind: domain.EventEnclaveCreated}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendEvent(ctx, domain.Event{EnclaveId: "b", Kind: domain.EventEnclaveCreated}); err != nil {
		t.Fatalf("append: %v", err)
	}

	evs, err := s.ListEvents(ctx, store.EventFilter{EnclaveId: "a"}, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 1 || evs[0].EnclaveId != "a" {
		t.Errorf("expected one event for enclave a, got %v", evs)
	}
}
