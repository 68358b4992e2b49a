// Package driver defines the cloud-agnostic capability contract the
// reconciler drives: provisioning and tearing down enclaves and
// partitions, wiring cross-scope imports, and observing drift. Concrete
// cloud drivers (gcp, aws, azure) are out of scope; driver/local is the
// one shipped implementation.
package driver

import (
	"context"

	"github.com/dragon-panic/nclav/pkg/domain"
)

// ContextVars are the variables a driver makes visible as {{ nclav_* }}
// template tokens and as the always-injected tfvars preamble.
type ContextVars map[string]string

// AuthEnv are environment variables injected into every IaC subprocess
// so providers can authenticate; never visible to user Terraform code.
type AuthEnv map[string]string

// Outputs maps an output key to its resolved string value.
type Outputs map[string]string

// Driver is the minimum surface the reconciler requires to treat any
// cloud the same way. Every method must be safe to call concurrently
// for distinct enclaves; a driver implementation owns its own
// synchronization for anything narrower.
type Driver interface {
	// ContextVars returns variables visible as {{ nclav_* }} tokens and
	// the tfvars preamble for resources belonging to enclave.
	ContextVars(ctx context.Context, enclave domain.EnclaveDecl, enclaveHandle domain.Handle) (ContextVars, error)

	// AuthEnv returns environment variables set on every IaC subprocess
	// run on behalf of enclave.
	AuthEnv(ctx context.Context, enclave domain.EnclaveDecl, enclaveHandle domain.Handle) (AuthEnv, error)

	// ProvisionEnclave is idempotent: given a non-zero existingHandle
	// that already indicates completion, it returns immediately without
	// re-provisioning.
	ProvisionEnclave(ctx context.Context, enclave domain.EnclaveDecl, existingHandle domain.Handle) (domain.Handle, Outputs, error)

	TeardownEnclave(ctx context.Context, enclave domain.EnclaveDecl, handle domain.Handle) error

	// ProvisionPartition creates only the per-partition identity a
	// driver manages directly; for IaC-backed partitions the workload
	// itself is provisioned by the workspace orchestrator, not here.
	ProvisionPartition(ctx context.Context, enclave domain.EnclaveDecl, partition domain.PartitionDecl, resolvedInputs map[string]string, existingHandle domain.Handle) (domain.Handle, Outputs, error)

	TeardownPartition(ctx context.Context, enclave domain.EnclaveDecl, partition domain.PartitionDecl, handle domain.Handle) error

	// ProvisionImport performs side effects an import's admission
	// requires (cross-project IAM grants, private endpoints, DNS
	// registration) and returns the import's resolved outputs.
	ProvisionImport(ctx context.Context, importer domain.PartitionId, imp domain.ImportDecl, sourceExportHandle domain.Handle, sourceExportOutputs Outputs) (Outputs, error)

	// ObserveEnclave and ObservePartition are read-only and never
	// mutate driver-managed state; they back drift reporting only.
	ObserveEnclave(ctx context.Context, enclave domain.EnclaveDecl, handle domain.Handle) (domain.ResourceStatus, error)
	ObservePartition(ctx context.Context, enclave domain.EnclaveDecl, partition domain.PartitionDecl, handle domain.Handle) (domain.ResourceStatus, error)
}
