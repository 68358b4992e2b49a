// Package store defines the persistence contract nclav's reconciler and
// HTTP edge use: applied enclave/partition records with optimistic
// concurrency, an append-only event log, the Terraform HTTP backend's
// state/lock protocol, and capped IaC run history. memstore, sqlitestore,
// and pgstore are the three implementations.
package store

import (
	"context"

	"github.com/dragon-panic/nclav/pkg/domain"
)

// EventFilter narrows list_events by enclave/partition; zero values mean
// "no filter on this field".
type EventFilter struct {
	EnclaveId   domain.EnclaveId
	PartitionId domain.PartitionId
}

// LockInfo is the lock holder record Terraform's HTTP backend posts on
// acquisition and the server returns verbatim on a 409 conflict.
type LockInfo struct {
	ID        string `json:"ID"`
	Operation string `json:"Operation,omitempty"`
	Info      string `json:"Info,omitempty"`
	Who       string `json:"Who,omitempty"`
	Version   string `json:"Version,omitempty"`
	Created   string `json:"Created,omitempty"`
	Path      string `json:"Path,omitempty"`
}

// Store is the abstract persistence contract. Every mutating method is
// atomic against concurrent callers; readers observe either pre- or
// post-state, never a partial write.
type Store interface {
	// Init prepares the backend for use (opens connections, runs
	// migrations). Close releases any held resources.
	Init(ctx context.Context) error
	Close() error

	UpsertEnclave(ctx context.Context, rec domain.EnclaveRecord, expectedGeneration uint64) (newGeneration uint64, err error)
	GetEnclave(ctx context.Context, id domain.EnclaveId) (*domain.EnclaveRecord, error)
	ListEnclaves(ctx context.Context) ([]domain.EnclaveRecord, error)
	DeleteEnclave(ctx context.Context, id domain.EnclaveId, expectedGeneration uint64) error

	UpsertPartition(ctx context.Context, rec domain.PartitionRecord, expectedGeneration uint64) (newGeneration uint64, err error)
	GetPartition(ctx context.Context, enclaveId domain.EnclaveId, id domain.PartitionId) (*domain.PartitionRecord, error)
	ListPartitions(ctx context.Context, enclaveId domain.EnclaveId) ([]domain.PartitionRecord, error)
	DeletePartition(ctx context.Context, enclaveId domain.EnclaveId, id domain.PartitionId, expectedGeneration uint64) error

	AppendEvent(ctx context.Context, ev domain.Event) (domain.Event, error)
	ListEvents(ctx context.Context, filter EventFilter, limit int) ([]domain.Event, error)

	GetTFState(ctx context.Context, key string) ([]byte, error)
	PutTFState(ctx context.Context, key string, data []byte) error
	DeleteTFState(ctx context.Context, key string) error

	LockTFState(ctx context.Context, key string, info LockInfo) error
	UnlockTFState(ctx context.Context, key string, lockId string) error
	GetTFLock(ctx context.Context, key string) (*LockInfo, error)

	AppendIacRun(ctx context.Context, run domain.IacRun) error
	ListIacRuns(ctx context.Context, enclaveId domain.EnclaveId, partitionId domain.PartitionId) ([]domain.IacRun, error)
	GetIacRun(ctx context.Context, id string) (*domain.IacRun, error)

	HealthCheck(ctx context.Context) error
}

// TFStateKey builds the "{enclave_id}/{partition_id}" key Terraform state
// and locks are keyed by.
func TFStateKey(enclaveId domain.EnclaveId, partitionId domain.PartitionId) string {
	return string(enclaveId) + "/" + string(partitionId)
}

// MaxIacRunHistory is the cap on ListIacRuns results per spec.md §4.2.
const MaxIacRunHistory = 100
