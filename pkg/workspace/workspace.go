// Package workspace materializes per-partition Terraform/OpenTofu
// workspaces, generates the backend and tfvars files nclav owns, and
// drives the init/apply/destroy subprocess lifecycle. The partition
// directory a user authored is never written to; only the workspace
// directory under {home}/workspaces/{enclave}/{partition} is.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

const (
	backendFileName = "nclav_backend.tf"
	tfvarsFileName  = "nclav_context.auto.tfvars"
	moduleFileName  = "nclav_module.tf"
	outputsFileName = "nclav_outputs.tf"
)

// Dir returns the workspace root for a partition under home.
func Dir(home string, enclaveId domain.EnclaveId, partitionId domain.PartitionId) string {
	return filepath.Join(home, "workspaces", string(enclaveId), string(partitionId))
}

// Materialize ensures the workspace directory exists and contains:
// the generated backend file, the generated tfvars file, and either
// symlinks to the partition's own .tf files (raw mode) or a generated
// module/outputs pair (module-sourced mode, when terraform.source is
// set).
//
// Mode selection per the spec: a partition with terraform.source must
// not itself contain any .tf files; if it does, Materialize fails
// before anything is written.
func Materialize(home string, enclaveId domain.EnclaveId, partition domain.PartitionDecl, backendConfig BackendConfig, tfvars string) (string, error) {
	ws := Dir(home, enclaveId, partition.Id)
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", nclaverr.NewIacError("creating workspace directory %s", ws).WithErr(err)
	}

	moduleSourced := partition.Terraform.Source != ""
	tfFiles, err := listTfFiles(partition.Dir)
	if err != nil {
		return "", nclaverr.NewIacError("listing .tf files in %s", partition.Dir).WithErr(err)
	}

	if moduleSourced && len(tfFiles) > 0 {
		return "", nclaverr.NewValidationError(
			"partition %s declares terraform.source but also contains .tf files: %s",
			partition.Id, strings.Join(tfFiles, ", "),
		).WithResource(string(partition.Id))
	}

	if err := clearGeneratedSymlinks(ws); err != nil {
		return "", err
	}

	if moduleSourced {
		if err := writeModuleFiles(ws, partition); err != nil {
			return "", err
		}
	} else if err := symlinkTfFiles(partition.Dir, ws, tfFiles); err != nil {
		return "", err
	}

	if err := writeBackendFile(ws, backendConfig); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(ws, tfvarsFileName), []byte(tfvars), 0o644); err != nil {
		return "", nclaverr.NewIacError("writing %s", tfvarsFileName).WithErr(err)
	}

	return ws, nil
}

func listTfFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".tf") {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// clearGeneratedSymlinks removes any previously materialized user-file
// symlinks so a partition that drops a .tf file doesn't leave it
// dangling in the workspace on the next reconcile.
func clearGeneratedSymlinks(ws string) error {
	entries, err := os.ReadDir(ws)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nclaverr.NewIacError("reading workspace directory %s", ws).WithErr(err)
	}
	for _, e := range entries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		if err := os.Remove(filepath.Join(ws, e.Name())); err != nil {
			return nclaverr.NewIacError("removing stale symlink %s", e.Name()).WithErr(err)
		}
	}
	return nil
}

func symlinkTfFiles(partitionDir, ws string, tfFiles []string) error {
	for _, name := range tfFiles {
		src := filepath.Join(partitionDir, name)
		dst := filepath.Join(ws, name)
		_ = os.Remove(dst)
		if err := os.Symlink(src, dst); err != nil {
			return nclaverr.NewIacError("symlinking %s into workspace", name).WithErr(err)
		}
	}
	return nil
}

func writeModuleFiles(ws string, partition domain.PartitionDecl) error {
	module := fmt.Sprintf(`module "partition" {
  source = %q
}
`, partition.Terraform.Source)
	if err := os.WriteFile(filepath.Join(ws, moduleFileName), []byte(module), 0o644); err != nil {
		return nclaverr.NewIacError("writing %s", moduleFileName).WithErr(err)
	}

	var b strings.Builder
	for _, key := range partition.DeclaredOutputs {
		fmt.Fprintf(&b, "output %q {\n  value = module.partition.%s\n}\n\n", key, key)
	}
	if err := os.WriteFile(filepath.Join(ws, outputsFileName), []byte(b.String()), 0o644); err != nil {
		return nclaverr.NewIacError("writing %s", outputsFileName).WithErr(err)
	}
	return nil
}

// BackendConfig is the address and credentials Terraform's HTTP
// backend block needs; values are injected at init time via
// -backend-config flags rather than baked into nclav_backend.tf.
type BackendConfig struct {
	Address       string
	LockAddress   string
	UnlockAddress string
	Username      string
	Password      string
}

func writeBackendFile(ws string, cfg BackendConfig) error {
	const body = `terraform {
  backend "http" {}
}
`
	if err := os.WriteFile(filepath.Join(ws, backendFileName), []byte(body), 0o644); err != nil {
		return nclaverr.NewIacError("writing %s", backendFileName).WithErr(err)
	}
	return nil
}

// BackendConfigArgs renders the -backend-config flags terraform init
// needs to point at this partition's state in the HTTP backend.
func (c BackendConfig) BackendConfigArgs() []string {
	return []string{
		"-backend-config=address=" + c.Address,
		"-backend-config=lock_address=" + c.LockAddress,
		"-backend-config=unlock_address=" + c.UnlockAddress,
		"-backend-config=lock_method=POST",
		"-backend-config=unlock_method=DELETE",
		"-backend-config=username=" + c.Username,
	}
}
