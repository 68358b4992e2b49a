package memstore

import (
	"context"
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/store"
)

func TestUpsertEnclave_OptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	s := New()

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

	_, err = s.UpsertEnclave(ctx, rec, 1) // stale generation
	if !nclaverr.IsStoreConflict(err) {
		t.Errorf("expected StoreConflict for stale generation, got %v", err)
	}
}

func TestLockTFState_ConflictAndUnlock(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.TFStateKey("acme-dev", "db")

	if err := s.LockTFState(ctx, key, store.LockInfo{ID: "lock-1"}); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	err := s.LockTFState(ctx, key, store.LockInfo{ID: "lock-2"})
	if !nclaverr.IsLockConflict(err) {
		t.Errorf("expected LockConflict on second acquisition, got %v", err)
	}

	if err := s.UnlockTFState(ctx, key, ""); err != nil {
		t.Fatalf("force unlock: %v", err)
	}

	if err := s.LockTFState(ctx, key, store.LockInfo{ID: "lock-3"}); err != nil {
		t.Fatalf("lock after unlock: %v", err)
	}
}

func TestListIacRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 3; i++ {
		run := domain.IacRun{
			Id: string(rune('a' + i)), EnclaveId: "e", PartitionId: "p",
			Operation: domain.IacProvision, Status: domain.IacRunSucceeded,
		}
		if err := s.AppendIacRun(ctx, run); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	runs, err := s.ListIacRuns(ctx, "e", "p")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Id != string(rune('a'+2)) {
		t.Errorf("expected newest-first ordering, got first id %q", runs[0].Id)
	}
}

func TestListEvents_Filter(t *testing.T) {
	ctx := context.Background()
	s := New()

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
