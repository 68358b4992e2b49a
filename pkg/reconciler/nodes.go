package reconciler

import (
	"context"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// processEnclaveNode implements spec.md §4.6 step 5 for one enclave
// node: Create/Update provisions it via the driver; NoChange and
// Delete are no-ops here (Delete is handled by teardownRemoved before
// the forward walk even starts).
func (r *Reconciler) processEnclaveNode(ctx context.Context, plan *graph.Plan, snap *appliedState, diff *diffSet, clouds map[domain.EnclaveId]cloudResolution, id domain.EnclaveId, runId string, result *Result) error {
	kind := diff.enclaveKind[id]
	if kind != ChangeCreate && kind != ChangeUpdate {
		return nil
	}

	decl := plan.Enclaves[id]
	res := clouds[id]
	existing := snap.enclaves[id]

	status := domain.StatusProvisioning
	if kind == ChangeUpdate {
		status = domain.StatusUpdating
	}

	rec := domain.EnclaveRecord{Decl: *decl, Meta: transitionMeta(existing.Meta, status)}
	gen, err := r.store.UpsertEnclave(ctx, rec, existing.Meta.Generation)
	if err != nil {
		return r.failEnclave(ctx, result, string(id), err, existing)
	}
	rec.Meta.Generation = gen

	handle, outputs, err := res.driver.ProvisionEnclave(ctx, *decl, existing.Meta.Handle)
	if err != nil {
		return r.failEnclave(ctx, result, string(id), nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "provisioning enclave %s: %s", id, err).WithResource(string(id)).WithErr(err), rec)
	}

	rec.Meta = transitionMeta(rec.Meta, domain.StatusActive)
	rec.Meta.DesiredHash = decl.DesiredHash()
	rec.Meta.Handle = handle
	rec.Meta.ResolvedOutputs = outputs
	rec.Meta.ResolvedCloud = res.cloud
	gen, err = r.store.UpsertEnclave(ctx, rec, rec.Meta.Generation)
	if err != nil {
		return r.failEnclave(ctx, result, string(id), err, rec)
	}
	rec.Meta.Generation = gen

	eventKind := domain.EventEnclaveCreated
	if kind == ChangeUpdate {
		eventKind = domain.EventEnclaveUpdated
	}
	r.appendEvent(ctx, domain.Event{EnclaveId: id, Kind: eventKind, Timestamp: time.Now(), ReconcileRunId: runId})
	return nil
}

func (r *Reconciler) failEnclave(ctx context.Context, result *Result, resource string, err error, rec domain.EnclaveRecord) error {
	result.addError(resource, err)
	rec.Meta.Status = domain.StatusError
	rec.Meta.LastError = &domain.ErrorInfo{Kind: errKind(err), Message: err.Error()}
	rec.Meta.UpdatedAt = time.Now()
	_, _ = r.store.UpsertEnclave(ctx, rec, rec.Meta.Generation)
	r.appendEvent(ctx, domain.Event{EnclaveId: rec.Decl.Id, Kind: domain.EventEnclaveError, Timestamp: time.Now(), Message: err.Error()})
	return err
}

// processPartitionNode implements spec.md §4.6 step 5 for one
// partition node: Create/Update calls the driver's per-partition
// provisioner, then drives the Terraform workspace orchestrator with
// resolved inputs.
func (r *Reconciler) processPartitionNode(ctx context.Context, plan *graph.Plan, snap *appliedState, diff *diffSet, clouds map[domain.EnclaveId]cloudResolution, enclaveId domain.EnclaveId, partitionId domain.PartitionId, runId string, result *Result) error {
	nid := partitionNodeId(enclaveId, partitionId)
	kind := diff.partitionKind[nid]
	resource := string(enclaveId) + "/" + string(partitionId)
	if kind != ChangeCreate && kind != ChangeUpdate {
		return nil
	}

	enclave := plan.Enclaves[enclaveId]
	var partition *domain.PartitionDecl
	for i := range enclave.Partitions {
		if enclave.Partitions[i].Id == partitionId {
			partition = &enclave.Partitions[i]
			break
		}
	}
	if partition == nil {
		return nclaverr.NewValidationError("partition %s not found in plan", resource)
	}

	res := clouds[enclaveId]
	existing, _ := snap.partition(enclaveId, partitionId)

	enclaveRec, err := r.store.GetEnclave(ctx, enclaveId)
	if err != nil || enclaveRec == nil {
		return r.failPartition(ctx, result, resource, nclaverr.NewStoreError("enclave %s not found for partition %s", enclaveId, partitionId), existing)
	}

	status := domain.StatusProvisioning
	if kind == ChangeUpdate {
		status = domain.StatusUpdating
	}
	rec := domain.PartitionRecord{EnclaveId: enclaveId, Decl: *partition, Meta: transitionMeta(existing.Meta, status)}
	gen, err := r.store.UpsertPartition(ctx, rec, existing.Meta.Generation)
	if err != nil {
		return r.failPartition(ctx, result, resource, err, existing)
	}
	rec.Meta.Generation = gen

	handle, driverOutputs, err := res.driver.ProvisionPartition(ctx, *enclave, *partition, partition.Inputs, existing.Meta.Handle)
	if err != nil {
		return r.failPartition(ctx, result, resource, nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "provisioning partition %s: %s", resource, err).WithResource(resource).WithErr(err), rec)
	}

	r.acquirePartitionSlot(enclaveId)
	iacOutputs, err := r.applyWorkspace(ctx, plan, *enclave, *partition, enclaveRec.Meta.Handle, res, runId)
	r.releasePartitionSlot(enclaveId)
	if err != nil {
		return r.failPartition(ctx, result, resource, err, rec)
	}

	outputs := map[string]string{}
	for k, v := range driverOutputs {
		outputs[k] = v
	}
	for k, v := range iacOutputs {
		outputs[k] = v
	}

	rec.Meta = transitionMeta(rec.Meta, domain.StatusActive)
	rec.Meta.DesiredHash = domain.DesiredStateInput{
		EnclaveId: enclaveId, PartitionId: partitionId,
		Backend: partition.Backend, Source: partition.Terraform.Source, Inputs: partition.Inputs,
	}.Hash()
	rec.Meta.Handle = handle
	rec.Meta.ResolvedOutputs = outputs
	rec.Meta.ResolvedCloud = res.cloud
	gen, err = r.store.UpsertPartition(ctx, rec, rec.Meta.Generation)
	if err != nil {
		return r.failPartition(ctx, result, resource, err, rec)
	}
	rec.Meta.Generation = gen

	eventKind := domain.EventPartitionCreated
	if kind == ChangeUpdate {
		eventKind = domain.EventPartitionUpdated
	}
	r.appendEvent(ctx, domain.Event{EnclaveId: enclaveId, PartitionId: partitionId, Kind: eventKind, Timestamp: time.Now(), ReconcileRunId: runId})
	return nil
}

func (r *Reconciler) failPartition(ctx context.Context, result *Result, resource string, err error, rec domain.PartitionRecord) error {
	result.addError(resource, err)
	rec.Meta.Status = domain.StatusError
	rec.Meta.LastError = &domain.ErrorInfo{Kind: errKind(err), Message: err.Error()}
	rec.Meta.UpdatedAt = time.Now()
	_, _ = r.store.UpsertPartition(ctx, rec, rec.Meta.Generation)
	r.appendEvent(ctx, domain.Event{EnclaveId: rec.EnclaveId, PartitionId: rec.Decl.Id, Kind: domain.EventPartitionError, Timestamp: time.Now(), Message: err.Error()})
	return err
}

func (r *Reconciler) appendEvent(ctx context.Context, ev domain.Event) {
	_, _ = r.store.AppendEvent(ctx, ev)
}
