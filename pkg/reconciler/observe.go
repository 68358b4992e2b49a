package reconciler

import (
	"context"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// ObserveResult reports drift for one enclave without correcting it.
type ObserveResult struct {
	Enclave    domain.ResourceStatus                        `json:"enclave_status"`
	Partitions map[domain.PartitionId]domain.ResourceStatus `json:"partition_status"`
}

// Observe implements the GET /enclaves/{id}?observe=true path: it
// calls observe_enclave and every partition's observe_partition,
// updates only last_seen_at and an Active<->Degraded transition if the
// observed status warrants it, and never calls any provision_* method.
func (r *Reconciler) Observe(ctx context.Context, enclaveId domain.EnclaveId) (*ObserveResult, error) {
	rec, err := r.store.GetEnclave(ctx, enclaveId)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nclaverr.NewValidationError("enclave %s not found", enclaveId)
	}

	d, _, err := r.drivers.Resolve(rec.Meta.ResolvedCloud)
	if err != nil {
		return nil, nclaverr.NewConfigError("%s", err).WithResource(string(enclaveId))
	}

	observed, err := d.ObserveEnclave(ctx, rec.Decl, rec.Meta.Handle)
	if err != nil {
		return nil, nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "observing enclave %s: %s", enclaveId, err).WithErr(err)
	}
	r.applyObservedStatus(ctx, rec, observed)

	out := &ObserveResult{Enclave: observed, Partitions: make(map[domain.PartitionId]domain.ResourceStatus)}

	parts, err := r.store.ListPartitions(ctx, enclaveId)
	if err != nil {
		return out, err
	}
	for _, p := range parts {
		pObserved, err := d.ObservePartition(ctx, rec.Decl, p.Decl, p.Meta.Handle)
		if err != nil {
			out.Partitions[p.Decl.Id] = domain.StatusError
			continue
		}
		r.applyObservedPartitionStatus(ctx, &p, pObserved)
		out.Partitions[p.Decl.Id] = pObserved
	}
	return out, nil
}

// applyObservedStatus updates last_seen_at always, and transitions
// Status between Active and Degraded based on the observed health —
// never any other transition, and never a provision_* call.
func (r *Reconciler) applyObservedStatus(ctx context.Context, rec *domain.EnclaveRecord, observed domain.ResourceStatus) {
	rec.Meta.ObservedStatus = observed
	rec.Meta.LastSeenAt = time.Now()
	if rec.Meta.Status == domain.StatusActive && observed == domain.StatusDegraded {
		rec.Meta.Status = domain.StatusDegraded
	} else if rec.Meta.Status == domain.StatusDegraded && observed == domain.StatusActive {
		rec.Meta.Status = domain.StatusActive
	}
	_, _ = r.store.UpsertEnclave(ctx, *rec, rec.Meta.Generation)
}

func (r *Reconciler) applyObservedPartitionStatus(ctx context.Context, rec *domain.PartitionRecord, observed domain.ResourceStatus) {
	rec.Meta.ObservedStatus = observed
	rec.Meta.LastSeenAt = time.Now()
	if rec.Meta.Status == domain.StatusActive && observed == domain.StatusDegraded {
		rec.Meta.Status = domain.StatusDegraded
	} else if rec.Meta.Status == domain.StatusDegraded && observed == domain.StatusActive {
		rec.Meta.Status = domain.StatusActive
	}
	_, _ = r.store.UpsertPartition(ctx, *rec, rec.Meta.Generation)
}
