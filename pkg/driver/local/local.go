// Package local is nclav's reference driver: no cloud API calls, no
// cross-project IAM, no DNS. It exists so the reconciler has a
// cloud-agnostic implementation to exercise in tests and single-host
// deployments, and so operators can see the full driver contract
// satisfied end to end without a cloud account.
package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
)

// handlePayload is the local driver's opaque Handle contents. Nothing
// outside this package ever decodes it.
type handlePayload struct {
	Id string `json:"id"`
}

// Driver provisions enclaves and partitions as bookkeeping records
// only: a generated id and nothing else. Partition workloads are left
// entirely to the Terraform workspace orchestrator.
type Driver struct {
	baseDomain string
}

// New constructs the local driver. baseDomain is used to synthesize
// hostnames for context vars; it may be empty.
func New(baseDomain string) *Driver {
	return &Driver{baseDomain: baseDomain}
}

func (d *Driver) ContextVars(ctx context.Context, enclave domain.EnclaveDecl, enclaveHandle domain.Handle) (driver.ContextVars, error) {
	vars := driver.ContextVars{}
	if d.baseDomain != "" {
		vars["nclav_base_domain"] = d.baseDomain
	}
	// nclav_enclave_id and nclav_partition_id are supplied directly by
	// the workspace orchestrator, not by the driver. nclav_project_id
	// and nclav_region are cloud-specific tokens the local driver has
	// no equivalent for; references to them are left unresolved, same
	// as any other cloud driver that doesn't define them.
	return vars, nil
}

func (d *Driver) AuthEnv(ctx context.Context, enclave domain.EnclaveDecl, enclaveHandle domain.Handle) (driver.AuthEnv, error) {
	return driver.AuthEnv{}, nil
}

func (d *Driver) ProvisionEnclave(ctx context.Context, enclave domain.EnclaveDecl, existingHandle domain.Handle) (domain.Handle, driver.Outputs, error) {
	if !existingHandle.IsZero() {
		return existingHandle, driver.Outputs{}, nil
	}
	h, err := encodeHandle(handlePayload{Id: uuid.NewString()})
	if err != nil {
		return nil, nil, err
	}
	return h, driver.Outputs{}, nil
}

func (d *Driver) TeardownEnclave(ctx context.Context, enclave domain.EnclaveDecl, handle domain.Handle) error {
	return nil
}

func (d *Driver) ProvisionPartition(ctx context.Context, enclave domain.EnclaveDecl, partition domain.PartitionDecl, resolvedInputs map[string]string, existingHandle domain.Handle) (domain.Handle, driver.Outputs, error) {
	if !existingHandle.IsZero() {
		return existingHandle, driver.Outputs{}, nil
	}
	h, err := encodeHandle(handlePayload{Id: uuid.NewString()})
	if err != nil {
		return nil, nil, err
	}
	return h, driver.Outputs{}, nil
}

func (d *Driver) TeardownPartition(ctx context.Context, enclave domain.EnclaveDecl, partition domain.PartitionDecl, handle domain.Handle) error {
	return nil
}

func (d *Driver) ProvisionImport(ctx context.Context, importer domain.PartitionId, imp domain.ImportDecl, sourceExportHandle domain.Handle, sourceExportOutputs driver.Outputs) (driver.Outputs, error) {
	// No cross-scope wiring needed locally; the source's outputs are
	// already usable as-is.
	return sourceExportOutputs, nil
}

func (d *Driver) ObserveEnclave(ctx context.Context, enclave domain.EnclaveDecl, handle domain.Handle) (domain.ResourceStatus, error) {
	if handle.IsZero() {
		return domain.StatusPending, nil
	}
	return domain.StatusActive, nil
}

func (d *Driver) ObservePartition(ctx context.Context, enclave domain.EnclaveDecl, partition domain.PartitionDecl, handle domain.Handle) (domain.ResourceStatus, error) {
	if handle.IsZero() {
		return domain.StatusPending, nil
	}
	return domain.StatusActive, nil
}

func encodeHandle(p handlePayload) (domain.Handle, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("local driver: encoding handle: %w", err)
	}
	return domain.Handle(b), nil
}

var _ driver.Driver = (*Driver)(nil)
