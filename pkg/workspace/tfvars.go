package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// RenderTfvars builds the nclav_context.auto.tfvars contents: a
// preamble of nclav_enclave/nclav_partition, then one HCL assignment
// per key in partition.Inputs, each value template-substituted against
// resolvedImports (by alias.key) and contextVars (by nclav_* token).
// Every unresolved reference is collected into a single error rather
// than failing on the first.
func RenderTfvars(enclave domain.EnclaveId, partition domain.PartitionDecl, resolvedImports map[string]driver.Outputs, contextVars driver.ContextVars) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "nclav_enclave   = %q\n", enclave)
	fmt.Fprintf(&b, "nclav_partition = %q\n", partition.Id)

	keys := make([]string, 0, len(partition.Inputs))
	for k := range partition.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// nclav_enclave_id and nclav_partition_id are always resolvable:
	// context_vars is enclave-scoped and can't know the partition being
	// rendered, so the orchestrator supplies both directly rather than
	// relying on the driver for them.
	scoped := driver.ContextVars{
		"nclav_enclave_id":   string(enclave),
		"nclav_partition_id": string(partition.Id),
	}
	for k, v := range contextVars {
		scoped[k] = v
	}

	var allUnresolved []string
	for _, key := range keys {
		resolved, unresolved := graph.Resolve(partition.Inputs[key], func(path string) (string, bool) {
			return lookupTemplateValue(path, resolvedImports, scoped)
		})
		allUnresolved = append(allUnresolved, unresolved...)
		fmt.Fprintf(&b, "%s = %q\n", key, resolved)
	}

	if len(allUnresolved) > 0 {
		return "", nclaverr.NewValidationError(
			"partition %s: unresolved template references: %s",
			partition.Id, strings.Join(allUnresolved, ", "),
		).WithResource(string(partition.Id))
	}

	return b.String(), nil
}

func lookupTemplateValue(path string, resolvedImports map[string]driver.Outputs, contextVars driver.ContextVars) (string, bool) {
	if graph.IsContextToken(path) {
		v, ok := contextVars[path]
		return v, ok
	}

	dot := strings.IndexByte(path, '.')
	if dot < 0 {
		return "", false
	}
	alias, key := path[:dot], path[dot+1:]
	outputs, ok := resolvedImports[alias]
	if !ok {
		return "", false
	}
	v, ok := outputs[key]
	return v, ok
}
