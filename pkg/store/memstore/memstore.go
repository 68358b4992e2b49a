// Package memstore is the in-memory Store implementation used by tests:
// reconciler, HTTP-layer, and scenario tests construct one per test case
// instead of standing up a real database.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/store"
)

type partitionKey struct {
	enclave   domain.EnclaveId
	partition domain.PartitionId
}

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	enclaves   map[domain.EnclaveId]domain.EnclaveRecord
	partitions map[partitionKey]domain.PartitionRecord

	events   []domain.Event
	eventSeq int64

	tfState map[string][]byte
	tfLocks map[string]store.LockInfo

	iacRuns      map[string]domain.IacRun
	iacRunsOrder []string // insertion order, for latest-N trimming per partition
}

// New constructs an empty in-memory store, already initialized.
func New() *Store {
	return &Store{
		enclaves:   make(map[domain.EnclaveId]domain.EnclaveRecord),
		partitions: make(map[partitionKey]domain.PartitionRecord),
		tfState:    make(map[string][]byte),
		tfLocks:    make(map[string]store.LockInfo),
		iacRuns:    make(map[string]domain.IacRun),
	}
}

func (s *Store) Init(ctx context.Context) error        { return nil }
func (s *Store) Close() error                          { return nil }
func (s *Store) HealthCheck(ctx context.Context) error { return nil }

func (s *Store) UpsertEnclave(ctx context.Context, rec domain.EnclaveRecord, expectedGeneration uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.enclaves[rec.Decl.Id]
	if ok && existing.Meta.Generation != expectedGeneration {
		return 0, nclaverr.NewStoreConflict("enclave %s: expected generation %d, got %d", rec.Decl.Id, expectedGeneration, existing.Meta.Generation).WithResource(string(rec.Decl.Id))
	}
	if !ok && expectedGeneration != 0 {
		return 0, nclaverr.NewStoreConflict("enclave %s: expected generation %d, got none", rec.Decl.Id, expectedGeneration).WithResource(string(rec.Decl.Id))
	}

	rec.Meta.Generation = expectedGeneration + 1
	s.enclaves[rec.Decl.Id] = rec
	return rec.Meta.Generation, nil
}

func (s *Store) GetEnclave(ctx context.Context, id domain.EnclaveId) (*domain.EnclaveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.enclaves[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) ListEnclaves(ctx context.Context) ([]domain.EnclaveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EnclaveRecord, 0, len(s.enclaves))
	for _, rec := range s.enclaves {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Decl.Id < out[j].Decl.Id })
	return out, nil
}

func (s *Store) DeleteEnclave(ctx context.Context, id domain.EnclaveId, expectedGeneration uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.enclaves[id]
	if !ok {
		return nil
	}
	if existing.Meta.Generation != expectedGeneration {
		return nclaverr.NewStoreConflict("enclave %s: expected generation %d, got %d", id, expectedGeneration, existing.Meta.Generation).WithResource(string(id))
	}
	delete(s.enclaves, id)
	return nil
}

func (s *Store) UpsertPartition(ctx context.Context, rec domain.PartitionRecord, expectedGeneration uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := partitionKey{rec.EnclaveId, rec.Decl.Id}
	existing, ok := s.partitions[key]
	if ok && existing.Meta.Generation != expectedGeneration {
		return 0, nclaverr.NewStoreConflict("partition %s/%s: expected generation %d, got %d", rec.EnclaveId, rec.Decl.Id, expectedGeneration, existing.Meta.Generation).WithResource(store.TFStateKey(rec.EnclaveId, rec.Decl.Id))
	}
	if !ok && expectedGeneration != 0 {
		return 0, nclaverr.NewStoreConflict("partition %s/%s: expected generation %d, got none", rec.EnclaveId, rec.Decl.Id, expectedGeneration).WithResource(store.TFStateKey(rec.EnclaveId, rec.Decl.Id))
	}

	rec.Meta.Generation = expectedGeneration + 1
	s.partitions[key] = rec
	return rec.Meta.Generation, nil
}

func (s *Store) GetPartition(ctx context.Context, enclaveId domain.EnclaveId, id domain.PartitionId) (*domain.PartitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.partitions[partitionKey{enclaveId, id}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) ListPartitions(ctx context.Context, enclaveId domain.EnclaveId) ([]domain.PartitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PartitionRecord
	for k, rec := range s.partitions {
		if k.enclave == enclaveId {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Decl.Id < out[j].Decl.Id })
	return out, nil
}

func (s *Store) DeletePartition(ctx context.Context, enclaveId domain.EnclaveId, id domain.PartitionId, expectedGeneration uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := partitionKey{enclaveId, id}
	existing, ok := s.partitions[key]
	if !ok {
		return nil
	}
	if existing.Meta.Generation != expectedGeneration {
		return nclaverr.NewStoreConflict("partition %s/%s: expected generation %d, got %d", enclaveId, id, expectedGeneration, existing.Meta.Generation).WithResource(store.TFStateKey(enclaveId, id))
	}
	delete(s.partitions, key)
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSeq++
	ev.Seq = s.eventSeq
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, filter store.EventFilter, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if filter.EnclaveId != "" && ev.EnclaveId != filter.EnclaveId {
			continue
		}
		if filter.PartitionId != "" && ev.PartitionId != filter.PartitionId {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetTFState(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.tfState[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (s *Store) PutTFState(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, len(data))
	copy(b, data)
	s.tfState[key] = b
	return nil
}

func (s *Store) DeleteTFState(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tfState, key)
	return nil
}

func (s *Store) LockTFState(ctx context.Context, key string, info store.LockInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tfLocks[key]; ok {
		return nclaverr.NewLockConflict("state %s already locked by %s", key, existing.ID).WithResource(key).WithDetail("lock", existing)
	}
	s.tfLocks[key] = info
	return nil
}

func (s *Store) UnlockTFState(ctx context.Context, key string, lockId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lockId == "" {
		delete(s.tfLocks, key)
		return nil
	}
	existing, ok := s.tfLocks[key]
	if !ok {
		return nil
	}
	if existing.ID != lockId {
		return nclaverr.NewLockConflict("state %s: lock id %s does not match holder %s", key, lockId, existing.ID).WithResource(key)
	}
	delete(s.tfLocks, key)
	return nil
}

func (s *Store) GetTFLock(ctx context.Context, key string) (*store.LockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tfLocks[key]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *Store) AppendIacRun(ctx context.Context, run domain.IacRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.iacRuns[run.Id]; !exists {
		s.iacRunsOrder = append(s.iacRunsOrder, run.Id)
	}
	s.iacRuns[run.Id] = run
	return nil
}

func (s *Store) ListIacRuns(ctx context.Context, enclaveId domain.EnclaveId, partitionId domain.PartitionId) ([]domain.IacRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.IacRun
	for i := len(s.iacRunsOrder) - 1; i >= 0; i-- {
		run := s.iacRuns[s.iacRunsOrder[i]]
		if run.EnclaveId != enclaveId || run.PartitionId != partitionId {
			continue
		}
		out = append(out, run)
		if len(out) >= store.MaxIacRunHistory {
			break
		}
	}
	return out, nil
}

func (s *Store) GetIacRun(ctx context.Context, id string) (*domain.IacRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.iacRuns[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}
