package reconciler

import (
	"context"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/workspace"
)

// applyWorkspace drives spec.md §4.4 for one partition: render tfvars
// against the driver's context vars and its imports' live outputs,
// materialize the workspace, and run init/apply/output. It returns the
// partition's extracted Terraform outputs.
func (r *Reconciler) applyWorkspace(ctx context.Context, plan *graph.Plan, enclave domain.EnclaveDecl, partition domain.PartitionDecl, enclaveHandle domain.Handle, res cloudResolution, runId string) (map[string]string, error) {
	contextVars, err := res.driver.ContextVars(ctx, enclave, enclaveHandle)
	if err != nil {
		return nil, nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "context vars for %s: %s", enclave.Id, err).WithErr(err)
	}
	authEnv, err := res.driver.AuthEnv(ctx, enclave, enclaveHandle)
	if err != nil {
		return nil, nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "auth env for %s: %s", enclave.Id, err).WithErr(err)
	}

	nid := partitionNodeId(enclave.Id, partition.Id)
	aliasOutputs, err := r.resolveAliasOutputs(ctx, plan, []graph.NodeId{graph.NodeId(enclave.Id), nid})
	if err != nil {
		return nil, err
	}

	tfvars, err := workspace.RenderTfvars(enclave.Id, partition, aliasOutputs, contextVars)
	if err != nil {
		return nil, err
	}

	backend := workspace.BackendConfig{
		Address:       r.stateURL(enclave.Id, partition.Id),
		LockAddress:   r.stateURL(enclave.Id, partition.Id) + "/lock",
		UnlockAddress: r.stateURL(enclave.Id, partition.Id) + "/lock",
		Username:      "nclav",
		Password:      r.bearerToken,
	}

	ws, err := workspace.Materialize(r.home, enclave.Id, partition, backend, tfvars)
	if err != nil {
		return nil, err
	}

	binary, err := workspace.BinaryFor(partition)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	runRecordId := workspace.RunId(enclave.Id, partition.Id, startedAt)
	r.appendIacRun(ctx, domain.IacRun{
		Id: runRecordId, EnclaveId: enclave.Id, PartitionId: partition.Id,
		Operation: domain.IacProvision, StartedAt: startedAt, Status: domain.IacRunRunning,
	})

	result, outputs, applyErr := workspace.Apply(ctx, binary, ws, backend, r.bearerToken, authEnv, partition.DeclaredOutputs)

	finishedAt := time.Now()
	status := domain.IacRunSucceeded
	if applyErr != nil {
		status = domain.IacRunFailed
	}
	r.appendIacRun(ctx, domain.IacRun{
		Id: runRecordId, EnclaveId: enclave.Id, PartitionId: partition.Id,
		Operation: domain.IacProvision, StartedAt: startedAt, FinishedAt: &finishedAt,
		Status: status, ExitCode: result.ExitCode, Log: result.Log,
	})

	return outputs, applyErr
}

func (r *Reconciler) stateURL(enclaveId domain.EnclaveId, partitionId domain.PartitionId) string {
	return r.apiBaseURL + "/terraform/state/" + string(enclaveId) + "/" + string(partitionId)
}

func (r *Reconciler) appendIacRun(ctx context.Context, run domain.IacRun) {
	_ = r.store.AppendIacRun(ctx, run)
}
