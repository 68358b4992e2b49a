// Package yamlconfig discovers and decodes the enclaves directory tree
// into domain declarations. schema.go holds CUE schemas for enclave and
// partition declarations (Schema); Load does not apply them, so decoded
// declarations go to the graph validator without a schema check.
package yamlconfig

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

const configFileName = "config.yml"

// Load walks enclavesDir, decoding one EnclaveDecl per immediate
// subdirectory and one PartitionDecl per subdirectory of each enclave.
// Entries without a config.yml are skipped. Enclaves are returned sorted
// by directory name for deterministic downstream processing.
func Load(enclavesDir string) ([]domain.EnclaveDecl, error) {
	entries, err := os.ReadDir(enclavesDir)
	if err != nil {
		return nil, nclaverr.NewConfigError("reading enclaves directory %s", enclavesDir).WithErr(err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	decls := make([]domain.EnclaveDecl, 0, len(names))
	for _, name := range names {
		enclaveDir := filepath.Join(enclavesDir, name)
		cfgPath := filepath.Join(enclaveDir, configFileName)
		if _, err := os.Stat(cfgPath); err != nil {
			continue
		}

		decl, err := loadEnclave(enclaveDir, cfgPath)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}

	return decls, nil
}

func loadEnclave(enclaveDir, cfgPath string) (domain.EnclaveDecl, error) {
	var decl domain.EnclaveDecl

	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return decl, nclaverr.NewConfigError("reading %s", cfgPath).WithErr(err)
	}
	if err := yaml.Unmarshal(raw, &decl); err != nil {
		return decl, nclaverr.NewValidationError("parsing %s", cfgPath).WithErr(err)
	}

	partEntries, err := os.ReadDir(enclaveDir)
	if err != nil {
		return decl, nclaverr.NewConfigError("reading enclave directory %s", enclaveDir).WithErr(err)
	}

	names := make([]string, 0, len(partEntries))
	for _, e := range partEntries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		partDir := filepath.Join(enclaveDir, name)
		partCfgPath := filepath.Join(partDir, configFileName)
		if _, err := os.Stat(partCfgPath); err != nil {
			continue
		}

		partDecl, err := loadPartition(partDir, partCfgPath)
		if err != nil {
			return decl, err
		}
		decl.Partitions = append(decl.Partitions, partDecl)
	}

	return decl, nil
}

func loadPartition(partDir, cfgPath string) (domain.PartitionDecl, error) {
	var decl domain.PartitionDecl

	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return decl, nclaverr.NewConfigError("reading %s", cfgPath).WithErr(err)
	}
	if err := yaml.Unmarshal(raw, &decl); err != nil {
		return decl, nclaverr.NewValidationError("parsing %s", cfgPath).WithErr(err)
	}
	decl.Dir = partDir

	return decl, nil
}
