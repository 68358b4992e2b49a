// Package reconciler drives one reconcile pass: load and validate the
// desired YAML tree, diff it against applied state, walk the plan's
// topological order provisioning and tearing down enclaves and
// partitions, wire cross-scope imports, and record the result as
// events and IacRun history.
package reconciler

import (
	"sync"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/store"
)

// ChangeKind classifies one diffed resource.
type ChangeKind string

const (
	ChangeCreate     ChangeKind = "create"
	ChangeUpdate     ChangeKind = "update"
	ChangeDelete     ChangeKind = "delete"
	ChangeNoChange   ChangeKind = "no_change"
	ChangeWireImport ChangeKind = "wire_import"
	ChangeWireExport ChangeKind = "wire_export"
)

// Change is one diffed or applied resource, per spec.md §6's
// POST /reconcile response shape.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Resource string     `json:"resource"`
}

// ResourceError is a per-resource failure surfaced alongside an
// otherwise-successful pass; it never aborts unrelated resources.
type ResourceError struct {
	Resource string `json:"resource"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Result is the outcome of one reconcile pass (or dry run).
type Result struct {
	RunId     string          `json:"run_id"`
	DryRun    bool            `json:"dry_run"`
	StartedAt time.Time       `json:"started_at"`
	Changes   []Change        `json:"changes"`
	Errors    []ResourceError `json:"errors"`
}

// HasErrors reports whether any resource in this pass failed.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *Result) addError(resource string, err error) {
	r.Errors = append(r.Errors, ResourceError{Resource: resource, Kind: errKind(err), Message: err.Error()})
}

func (r *Result) addChange(kind ChangeKind, resource string) {
	r.Changes = append(r.Changes, Change{Kind: kind, Resource: resource})
}

// Request is the input to one reconcile pass.
type Request struct {
	EnclavesDir string
	DryRun      bool
}

// Config wires a Reconciler's dependencies and tunables.
type Config struct {
	Store   store.Store
	Drivers *driver.Registry

	// WorkspaceHome is the filesystem root workspace directories are
	// materialized under ({home}/workspaces/{enclave}/{partition}).
	WorkspaceHome string

	// APIBaseURL is this process's own externally-reachable base URL,
	// used to build the Terraform HTTP backend addresses partitions are
	// pointed at during `terraform init`.
	APIBaseURL string

	// BearerToken authenticates this process's own HTTP edge, including
	// the TF_HTTP_PASSWORD subprocess env var.
	BearerToken string

	// PartitionFanout bounds concurrent partition provisions within one
	// enclave (spec.md §5's "small fan-out, e.g. 8"). Zero uses the
	// default.
	PartitionFanout int
}

const defaultPartitionFanout = 8

// Reconciler runs reconcile passes against one store/driver registry.
type Reconciler struct {
	store   store.Store
	drivers *driver.Registry

	home        string
	apiBaseURL  string
	bearerToken string
	fanout      int

	enclaveSemMu sync.Mutex
	enclaveSem   map[domain.EnclaveId]chan struct{}
}
