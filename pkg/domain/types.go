// Package domain defines the cloud-agnostic types nclav reconciles:
// enclaves, partitions, their exports and imports, and the applied-state
// bookkeeping attached to every resource record.
package domain

import "time"

// ResourceStatus is the lifecycle status of an enclave or partition record.
type ResourceStatus string

const (
	StatusPending      ResourceStatus = "Pending"
	StatusProvisioning ResourceStatus = "Provisioning"
	StatusActive       ResourceStatus = "Active"
	StatusUpdating     ResourceStatus = "Updating"
	StatusDegraded     ResourceStatus = "Degraded"
	StatusError        ResourceStatus = "Error"
	StatusDeleting     ResourceStatus = "Deleting"
	StatusDeleted      ResourceStatus = "Deleted"
)

// CloudTag identifies the target cloud a driver is registered under.
// The empty string means "inherit the registry default".
type CloudTag string

const (
	CloudLocal CloudTag = "local"
	CloudGCP   CloudTag = "gcp"
	CloudAWS   CloudTag = "aws"
	CloudAzure CloudTag = "azure"
)

// ProducesType is the typed interface a partition offers to consumers.
type ProducesType string

const (
	ProducesHTTP  ProducesType = "http"
	ProducesTCP   ProducesType = "tcp"
	ProducesQueue ProducesType = "queue"
)

// MandatoryOutputs returns the output keys every partition producing t
// must declare, per the produces/outputs contract.
func MandatoryOutputs(t ProducesType) []string {
	switch t {
	case ProducesHTTP, ProducesTCP:
		return []string{"hostname", "port"}
	case ProducesQueue:
		return []string{"queue_url"}
	default:
		return nil
	}
}

// AuthMode is the authentication mode attached to an export.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthToken  AuthMode = "token"
	AuthOAuth  AuthMode = "oauth"
	AuthMTLS   AuthMode = "mtls"
	AuthNative AuthMode = "native"
)

// LegalAuthModes is the (type, auth) admission matrix from the spec.
var LegalAuthModes = map[ProducesType]map[AuthMode]bool{
	ProducesHTTP:  {AuthNone: true, AuthToken: true, AuthOAuth: true, AuthMTLS: true},
	ProducesTCP:   {AuthNone: true, AuthMTLS: true, AuthNative: true},
	ProducesQueue: {AuthNone: true, AuthToken: true, AuthNative: true},
}

// IsLegalAuth reports whether auth is an allowed mode for a partition of
// the given produces type, per the spec's (type, auth) matrix.
func IsLegalAuth(t ProducesType, auth AuthMode) bool {
	modes, ok := LegalAuthModes[t]
	if !ok {
		return false
	}
	return modes[auth]
}

// BackendKind selects which IaC tool a partition's workspace uses.
type BackendKind string

const (
	BackendTerraform BackendKind = "terraform"
	BackendOpenTofu  BackendKind = "opentofu"
)

// EnclaveId uniquely names an enclave: lowercase alphanumeric, hyphenated,
// at most 30 characters.
type EnclaveId string

// PartitionId uniquely names a partition within its enclave, at most 63
// characters.
type PartitionId string

// Network describes an enclave's private address space.
type Network struct {
	VPCCIDR string   `json:"vpc_cidr" yaml:"vpc_cidr"`
	Subnets []string `json:"subnets,omitempty" yaml:"subnets,omitempty"`
}

// DNS describes an enclave's delegated DNS zone.
type DNS struct {
	Zone string `json:"zone" yaml:"zone"`
}

// EnclaveDecl is the declarative form of an enclave as parsed from
// config.yml, before graph validation.
type EnclaveDecl struct {
	Id       EnclaveId    `json:"id" yaml:"id" validate:"required,nclav_enclave_id"`
	Name     string       `json:"name" yaml:"name"`
	Cloud    CloudTag     `json:"cloud,omitempty" yaml:"cloud,omitempty"`
	Region   string       `json:"region,omitempty" yaml:"region,omitempty"`
	Identity string       `json:"identity,omitempty" yaml:"identity,omitempty"`
	Network  *Network     `json:"network,omitempty" yaml:"network,omitempty"`
	DNS      *DNS         `json:"dns,omitempty" yaml:"dns,omitempty"`
	Exports  []ExportDecl `json:"exports,omitempty" yaml:"exports,omitempty"`
	Imports  []ImportDecl `json:"imports,omitempty" yaml:"imports,omitempty"`

	// Partitions is populated by the YAML loader from the enclave's
	// partition subdirectories; it is not itself a config.yml field.
	Partitions []PartitionDecl `json:"-" yaml:"-"`
}

// ExportDecl is a declared, typed, access-controlled endpoint an
// enclave offers to consumers.
type ExportDecl struct {
	Name            string       `json:"name" yaml:"name" validate:"required"`
	TargetPartition PartitionId  `json:"target_partition" yaml:"target_partition" validate:"required"`
	Type            ProducesType `json:"type" yaml:"type" validate:"required"`
	To              string       `json:"to" yaml:"to" validate:"required"`
	Auth            AuthMode     `json:"auth" yaml:"auth" validate:"required"`
}

// ImportDecl is a consumer's reference to another scope's export, with a
// local alias used during template substitution.
type ImportDecl struct {
	From       string `json:"from" yaml:"from" validate:"required"`
	ExportName string `json:"export_name" yaml:"export_name" validate:"required"`
	Alias      string `json:"alias" yaml:"alias" validate:"required"`
}

// PartitionDecl is the declarative form of a partition as parsed from
// its config.yml.
type PartitionDecl struct {
	Id              PartitionId       `json:"id" yaml:"id" validate:"required,nclav_partition_id"`
	Name            string            `json:"name" yaml:"name"`
	Produces        ProducesType      `json:"produces,omitempty" yaml:"produces,omitempty"`
	Backend         BackendKind       `json:"backend" yaml:"backend" validate:"required"`
	Terraform       TerraformDecl     `json:"terraform,omitempty" yaml:"terraform,omitempty"`
	Inputs          map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	DeclaredOutputs []string          `json:"declared_outputs,omitempty" yaml:"declared_outputs,omitempty"`
	Imports         []ImportDecl      `json:"imports,omitempty" yaml:"imports,omitempty"`

	// Dir is the absolute path to the partition's directory on disk,
	// populated by the YAML loader.
	Dir string `json:"-" yaml:"-"`
}

// TerraformDecl holds the partition's IaC tool configuration.
type TerraformDecl struct {
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Tool   string `json:"tool,omitempty" yaml:"tool,omitempty"`
}

// ErrorInfo tags a persisted last_error with a machine-readable kind
// alongside the human-readable message.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ResourceMeta is the applied-state bookkeeping every persisted enclave
// or partition record carries.
type ResourceMeta struct {
	Status ResourceStatus `json:"status"`

	// ObservedStatus is populated only by the observe path
	// (observe_enclave/observe_partition) and never by the apply path,
	// so drift observation can never silently overwrite Status.
	ObservedStatus ResourceStatus `json:"observed_status,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastSeenAt time.Time `json:"last_seen_at"`

	LastError *ErrorInfo `json:"last_error,omitempty"`

	// DesiredHash is the content hash of the resolved desired config as
	// of the last successful apply. Equal hashes skip provisioning.
	DesiredHash string `json:"desired_hash"`

	// Generation increases strictly on every successful write and backs
	// optimistic concurrency.
	Generation uint64 `json:"generation"`

	// Handle is an opaque, driver-scoped serialized receipt. nclav
	// stores and compares it by equality of serialization; it never
	// inspects the contents.
	Handle Handle `json:"handle,omitempty"`

	// ResolvedOutputs maps output key to value, produced by either the
	// driver or the IaC tool.
	ResolvedOutputs map[string]string `json:"resolved_outputs,omitempty"`

	// ResolvedCloud is the effective cloud tag at apply time. Never
	// blank once a resource has been successfully applied at least once.
	ResolvedCloud CloudTag `json:"resolved_cloud,omitempty"`
}

// EnclaveRecord is the persisted applied state for one enclave.
type EnclaveRecord struct {
	Decl EnclaveDecl  `json:"decl"`
	Meta ResourceMeta `json:"meta"`
}

// PartitionRecord is the persisted applied state for one partition.
type PartitionRecord struct {
	EnclaveId EnclaveId     `json:"enclave_id"`
	Decl      PartitionDecl `json:"decl"`
	Meta      ResourceMeta  `json:"meta"`
}

// EventKind names the kind of audit event recorded for a state transition.
type EventKind string

const (
	EventEnclaveCreated   EventKind = "enclave.created"
	EventEnclaveUpdated   EventKind = "enclave.updated"
	EventEnclaveDeleted   EventKind = "enclave.deleted"
	EventEnclaveError     EventKind = "enclave.error"
	EventPartitionCreated EventKind = "partition.created"
	EventPartitionUpdated EventKind = "partition.updated"
	EventPartitionDeleted EventKind = "partition.deleted"
	EventPartitionError   EventKind = "partition.error"
	EventImportWired      EventKind = "import.wired"
	EventExportWired      EventKind = "export.wired"
)

// Event is an append-only audit entry recorded for every state transition.
type Event struct {
	Seq            int64       `json:"seq"`
	EnclaveId      EnclaveId   `json:"enclave_id"`
	PartitionId    PartitionId `json:"partition_id,omitempty"`
	Kind           EventKind   `json:"kind"`
	Timestamp      time.Time   `json:"timestamp"`
	ReconcileRunId string      `json:"reconcile_run_id"`
	Message        string      `json:"message,omitempty"`
}

// IacOperation names the kind of terraform/tofu invocation bundle an
// IacRun records.
type IacOperation string

const (
	IacProvision IacOperation = "Provision"
	IacUpdate    IacOperation = "Update"
	IacTeardown  IacOperation = "Teardown"
)

// IacRunStatus is the lifecycle status of one IacRun record.
type IacRunStatus string

const (
	IacRunRunning   IacRunStatus = "Running"
	IacRunSucceeded IacRunStatus = "Succeeded"
	IacRunFailed    IacRunStatus = "Failed"
)

// IacRun is one bundle of terraform init+apply (or destroy), recorded
// with its full interleaved log.
type IacRun struct {
	Id          string       `json:"id"`
	EnclaveId   EnclaveId    `json:"enclave_id"`
	PartitionId PartitionId  `json:"partition_id"`
	Operation   IacOperation `json:"operation"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Status      IacRunStatus `json:"status"`
	ExitCode    *int         `json:"exit_code,omitempty"`
	Log         string       `json:"log"`
}
