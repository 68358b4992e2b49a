package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServeConfigFile_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := loadServeConfigFile("")
	if err != nil {
		t.Fatalf("loadServeConfigFile(\"\"): %v", err)
	}
	want := defaultServeConfig()
	if cfg != want {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadServeConfigFile_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nclavd.yaml")
	content := `
listen: ":9999"
bearer_token: "s3cr3t"
store:
  backend: postgres
  postgres_dsn: "postgres://localhost/nclav"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := loadServeConfigFile(path)
	if err != nil {
		t.Fatalf("loadServeConfigFile: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("got listen %q, want :9999", cfg.Listen)
	}
	if cfg.BearerToken != "s3cr3t" {
		t.Errorf("got bearer token %q, want s3cr3t", cfg.BearerToken)
	}
	if cfg.Store.Backend != "postgres" {
		t.Errorf("got store backend %q, want postgres", cfg.Store.Backend)
	}
	// fields not present in the file keep the programmatic defaults.
	if cfg.WorkspaceHome != defaultServeConfig().WorkspaceHome {
		t.Errorf("got workspace home %q, want the default", cfg.WorkspaceHome)
	}
}

func TestLoadServeConfigFile_MissingFileErrors(t *testing.T) {
	_, err := loadServeConfigFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
