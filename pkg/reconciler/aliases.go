package reconciler

import (
	"context"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// resolveAliasOutputs gathers the outputs available to a node's import
// aliases, keyed by alias, by reading each import's resolved source
// live from the store. A partition node also inherits aliases declared
// on its enclave, since template substitution shares that scope.
func (r *Reconciler) resolveAliasOutputs(ctx context.Context, plan *graph.Plan, nodeIds []graph.NodeId) (map[string]driver.Outputs, error) {
	out := make(map[string]driver.Outputs)
	var missing []string

	for _, ri := range plan.ResolvedImports {
		matches := false
		for _, id := range nodeIds {
			if ri.Importer == id {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}

		source := plan.Nodes[ri.SourceNode]
		if source == nil {
			missing = append(missing, ri.Import.Alias)
			continue
		}

		var resolved map[string]string
		if source.Kind == graph.NodeEnclave {
			rec, err := r.store.GetEnclave(ctx, source.EnclaveId)
			if err != nil || rec == nil || rec.Meta.Status != domain.StatusActive {
				missing = append(missing, ri.Import.Alias)
				continue
			}
			resolved = rec.Meta.ResolvedOutputs
		} else {
			rec, err := r.store.GetPartition(ctx, source.EnclaveId, source.PartitionId)
			if err != nil || rec == nil || rec.Meta.Status != domain.StatusActive {
				missing = append(missing, ri.Import.Alias)
				continue
			}
			resolved = rec.Meta.ResolvedOutputs
		}

		out[ri.Import.Alias] = resolved
	}

	if len(missing) > 0 {
		return out, nclaverr.NewConfigError("unresolved import aliases (source not active): %v", missing)
	}
	return out, nil
}
