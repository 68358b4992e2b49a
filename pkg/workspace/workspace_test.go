package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
)

func TestMaterialize_RawModeSymlinksUserFiles(t *testing.T) {
	home := t.TempDir()
	partitionDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(partitionDir, "main.tf"), []byte("# main"), 0o644); err != nil {
		t.Fatalf("writing main.tf: %v", err)
	}

	partition := domain.PartitionDecl{Id: "db", Dir: partitionDir, Backend: domain.BackendTerraform}
	ws, err := Materialize(home, "acme-dev", partition, BackendConfig{Address: "http://x/state"}, "nclav_enclave = \"acme-dev\"\n")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	link := filepath.Join(ws, "main.tf")
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("lstat symlink: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("expected main.tf to be a symlink in the workspace")
	}

	if _, err := os.Stat(filepath.Join(ws, backendFileName)); err != nil {
		t.Errorf("expected backend file, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, tfvarsFileName)); err != nil {
		t.Errorf("expected tfvars file, got %v", err)
	}
}

func TestMaterialize_ModuleSourcedRejectsOwnTfFiles(t *testing.T) {
	home := t.TempDir()
	partitionDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(partitionDir, "main.tf"), []byte("# main"), 0o644); err != nil {
		t.Fatalf("writing main.tf: %v", err)
	}

	partition := domain.PartitionDecl{
		Id: "db", Dir: partitionDir, Backend: domain.BackendTerraform,
		Terraform: domain.TerraformDecl{Source: "git::https://example.com/modules/db"},
	}

	if _, err := Materialize(home, "acme-dev", partition, BackendConfig{}, ""); err == nil {
		t.Error("expected materialize to reject a module-sourced partition with its own .tf files")
	}
}

func TestMaterialize_ModuleSourcedGeneratesModuleAndOutputs(t *testing.T) {
	home := t.TempDir()
	partitionDir := t.TempDir()

	partition := domain.PartitionDecl{
		Id: "db", Dir: partitionDir, Backend: domain.BackendTerraform,
		Terraform:       domain.TerraformDecl{Source: "git::https://example.com/modules/db"},
		DeclaredOutputs: []string{"hostname", "port"},
	}

	ws, err := Materialize(home, "acme-dev", partition, BackendConfig{}, "")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, moduleFileName)); err != nil {
		t.Errorf("expected module file, got %v", err)
	}
	b, err := os.ReadFile(filepath.Join(ws, outputsFileName))
	if err != nil {
		t.Fatalf("reading outputs file: %v", err)
	}
	if !strings.Contains(string(b), "hostname") || !strings.Contains(string(b), "port") {
		t.Errorf("expected outputs file to declare hostname and port, got %s", b)
	}
}
