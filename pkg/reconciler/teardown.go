package reconciler

import (
	"context"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/workspace"
)

// teardownRemoved implements spec.md §4.6 step 7 for resources absent
// from the newly desired plan: every removed partition is destroyed
// before the enclave it belonged to (which may itself be removed), so
// teardown_enclave is never called while one of its partitions is
// still provisioned.
func (r *Reconciler) teardownRemoved(ctx context.Context, diff *diffSet, runId string, result *Result) {
	for _, rec := range diff.deletedPartitions {
		_ = r.teardownPartitionRecord(ctx, rec, runId, result)
	}
	for _, enclaveId := range diff.deletedEnclaves {
		_ = r.teardownEnclaveRecord(ctx, enclaveId, runId, result)
	}
}

// TeardownPartition tears down a single partition outside of a full
// reconcile pass, for the declarative teardown shortcut at
// DELETE /enclaves/{id}/partitions/{part}.
func (r *Reconciler) TeardownPartition(ctx context.Context, enclaveId domain.EnclaveId, partitionId domain.PartitionId) error {
	rec, err := r.store.GetPartition(ctx, enclaveId, partitionId)
	if err != nil {
		return err
	}
	if rec == nil {
		return nclaverr.NewValidationError("partition %s/%s not found", enclaveId, partitionId)
	}
	result := &Result{}
	return r.teardownPartitionRecord(ctx, *rec, "", result)
}

// TeardownEnclave tears down an enclave and every one of its
// partitions, for the declarative teardown shortcut at
// DELETE /enclaves/{id}.
func (r *Reconciler) TeardownEnclave(ctx context.Context, enclaveId domain.EnclaveId) (*Result, error) {
	result := &Result{}
	parts, err := r.store.ListPartitions(ctx, enclaveId)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		_ = r.teardownPartitionRecord(ctx, p, "", result)
	}
	if err := r.teardownEnclaveRecord(ctx, enclaveId, "", result); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Reconciler) teardownPartitionRecord(ctx context.Context, rec domain.PartitionRecord, runId string, result *Result) error {
	resource := string(rec.EnclaveId) + "/" + string(rec.Decl.Id)

	enclaveRec, err := r.store.GetEnclave(ctx, rec.EnclaveId)
	if err != nil {
		return r.failPartitionDelete(ctx, result, resource, err, rec)
	}
	var enclaveDecl domain.EnclaveDecl
	var enclaveHandle domain.Handle
	if enclaveRec != nil {
		enclaveDecl = enclaveRec.Decl
		enclaveHandle = enclaveRec.Meta.Handle
	} else {
		enclaveDecl = domain.EnclaveDecl{Id: rec.EnclaveId}
	}

	d, _, err := r.drivers.Resolve(rec.Meta.ResolvedCloud)
	if err != nil {
		return r.failPartitionDelete(ctx, result, resource, nclaverr.NewConfigError("%s", err).WithResource(resource), rec)
	}

	rec.Meta = transitionMeta(rec.Meta, domain.StatusDeleting)
	gen, err := r.store.UpsertPartition(ctx, rec, rec.Meta.Generation)
	if err != nil {
		return r.failPartitionDelete(ctx, result, resource, err, rec)
	}
	rec.Meta.Generation = gen

	if binary, err := workspace.BinaryFor(rec.Decl); err == nil {
		authEnv, _ := d.AuthEnv(ctx, enclaveDecl, enclaveHandle)
		ws := workspace.Dir(r.home, rec.EnclaveId, rec.Decl.Id)
		startedAt := time.Now()
		runRecordId := workspace.RunId(rec.EnclaveId, rec.Decl.Id, startedAt)
		r.appendIacRun(ctx, domain.IacRun{Id: runRecordId, EnclaveId: rec.EnclaveId, PartitionId: rec.Decl.Id, Operation: domain.IacTeardown, StartedAt: startedAt, Status: domain.IacRunRunning})

		destroyResult, destroyErr := workspace.Destroy(ctx, binary, ws, r.bearerToken, authEnv)
		finishedAt := time.Now()
		status := domain.IacRunSucceeded
		if destroyErr != nil {
			status = domain.IacRunFailed
		}
		r.appendIacRun(ctx, domain.IacRun{
			Id: runRecordId, EnclaveId: rec.EnclaveId, PartitionId: rec.Decl.Id, Operation: domain.IacTeardown,
			StartedAt: startedAt, FinishedAt: &finishedAt, Status: status, ExitCode: destroyResult.ExitCode, Log: destroyResult.Log,
		})
		if destroyErr != nil {
			return r.failPartitionDelete(ctx, result, resource, destroyErr, rec)
		}
	}

	if err := d.TeardownPartition(ctx, enclaveDecl, rec.Decl, rec.Meta.Handle); err != nil {
		wrapped := nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "tearing down partition %s: %s", resource, err).WithResource(resource).WithErr(err)
		return r.failPartitionDelete(ctx, result, resource, wrapped, rec)
	}

	if err := r.store.DeletePartition(ctx, rec.EnclaveId, rec.Decl.Id, rec.Meta.Generation); err != nil {
		return r.failPartitionDelete(ctx, result, resource, err, rec)
	}

	r.appendEvent(ctx, domain.Event{EnclaveId: rec.EnclaveId, PartitionId: rec.Decl.Id, Kind: domain.EventPartitionDeleted, Timestamp: time.Now(), ReconcileRunId: runId})
	result.addChange(ChangeDelete, resource)
	return nil
}

func (r *Reconciler) failPartitionDelete(ctx context.Context, result *Result, resource string, err error, rec domain.PartitionRecord) error {
	result.addError(resource, err)
	rec.Meta.Status = domain.StatusError
	rec.Meta.LastError = &domain.ErrorInfo{Kind: errKind(err), Message: err.Error()}
	rec.Meta.UpdatedAt = time.Now()
	_, _ = r.store.UpsertPartition(ctx, rec, rec.Meta.Generation)
	r.appendEvent(ctx, domain.Event{EnclaveId: rec.EnclaveId, PartitionId: rec.Decl.Id, Kind: domain.EventPartitionError, Timestamp: time.Now(), Message: err.Error()})
	return err
}

func (r *Reconciler) teardownEnclaveRecord(ctx context.Context, enclaveId domain.EnclaveId, runId string, result *Result) error {
	rec, err := r.store.GetEnclave(ctx, enclaveId)
	if err != nil {
		result.addError(string(enclaveId), err)
		return err
	}
	if rec == nil {
		return nil
	}

	remaining, err := r.store.ListPartitions(ctx, enclaveId)
	if err == nil && len(remaining) > 0 {
		// Partitions still present (one failed its own teardown above);
		// leave the enclave in place rather than orphaning them.
		return nil
	}

	d, _, err := r.drivers.Resolve(rec.Meta.ResolvedCloud)
	if err != nil {
		result.addError(string(enclaveId), nclaverr.NewConfigError("%s", err).WithResource(string(enclaveId)))
		return err
	}

	rec.Meta = transitionMeta(rec.Meta, domain.StatusDeleting)
	gen, err := r.store.UpsertEnclave(ctx, *rec, rec.Meta.Generation)
	if err != nil {
		result.addError(string(enclaveId), err)
		return err
	}
	rec.Meta.Generation = gen

	if err := d.TeardownEnclave(ctx, rec.Decl, rec.Meta.Handle); err != nil {
		wrapped := nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "tearing down enclave %s: %s", enclaveId, err).WithResource(string(enclaveId)).WithErr(err)
		result.addError(string(enclaveId), wrapped)
		rec.Meta.Status = domain.StatusError
		rec.Meta.LastError = &domain.ErrorInfo{Kind: errKind(wrapped), Message: wrapped.Error()}
		_, _ = r.store.UpsertEnclave(ctx, *rec, rec.Meta.Generation)
		return wrapped
	}

	if err := r.store.DeleteEnclave(ctx, enclaveId, rec.Meta.Generation); err != nil {
		result.addError(string(enclaveId), err)
		return err
	}

	r.appendEvent(ctx, domain.Event{EnclaveId: enclaveId, Kind: domain.EventEnclaveDeleted, Timestamp: time.Now(), ReconcileRunId: runId})
	result.addChange(ChangeDelete, string(enclaveId))
	return nil
}
