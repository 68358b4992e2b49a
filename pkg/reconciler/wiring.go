package reconciler

import (
	"context"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// wireImports implements spec.md §4.6 step 6: for every import that
// crosses an enclave boundary, call the importer's driver to perform
// the side-effecting admission (IAM grant, private endpoint, DNS
// record) and merge the returned outputs into the importer's
// resolved_outputs. Same-enclave imports need no driver call — their
// values were already resolved via template substitution into tfvars.
func (r *Reconciler) wireImports(ctx context.Context, plan *graph.Plan, clouds map[domain.EnclaveId]cloudResolution, runId string, result *Result, blocked *blockSet) {
	for _, ri := range plan.ResolvedImports {
		importerNode := plan.Nodes[ri.Importer]
		sourceNode := plan.Nodes[ri.SourceNode]
		if importerNode == nil || sourceNode == nil {
			continue
		}
		if blocked.isBlocked(ri.Importer) || blocked.isBlocked(ri.SourceNode) {
			continue
		}
		if importerNode.EnclaveId == sourceNode.EnclaveId {
			continue
		}

		res := clouds[importerNode.EnclaveId]
		if res.err != nil {
			continue
		}

		sourceHandle, sourceOutputs, err := r.sourceHandleAndOutputs(ctx, sourceNode)
		if err != nil {
			result.addError(string(ri.Importer), err)
			continue
		}

		outputs, err := res.driver.ProvisionImport(ctx, importerNode.PartitionId, ri.Import, sourceHandle, sourceOutputs)
		if err != nil {
			wrapped := nclaverr.NewDriverError(nclaverr.DriverProvisionFailed, "wiring import %s for %s: %s", ri.Import.Alias, ri.Importer, err).WithResource(string(ri.Importer)).WithErr(err)
			result.addError(string(ri.Importer), wrapped)
			continue
		}

		if err := r.mergeImportOutputs(ctx, importerNode, ri.Import.Alias, outputs); err != nil {
			result.addError(string(ri.Importer), err)
			continue
		}

		result.addChange(ChangeWireImport, string(ri.Importer)+"."+ri.Import.Alias)
		r.appendEvent(ctx, domain.Event{
			EnclaveId: importerNode.EnclaveId, PartitionId: importerNode.PartitionId,
			Kind: domain.EventImportWired, Timestamp: time.Now(), ReconcileRunId: runId, Message: ri.Import.Alias,
		})
	}
}

func (r *Reconciler) sourceHandleAndOutputs(ctx context.Context, source *graph.Node) (domain.Handle, driver.Outputs, error) {
	if source.Kind == graph.NodeEnclave {
		rec, err := r.store.GetEnclave(ctx, source.EnclaveId)
		if err != nil || rec == nil {
			return nil, nil, nclaverr.NewStoreError("import source enclave %s not found", source.EnclaveId)
		}
		return rec.Meta.Handle, rec.Meta.ResolvedOutputs, nil
	}
	rec, err := r.store.GetPartition(ctx, source.EnclaveId, source.PartitionId)
	if err != nil || rec == nil {
		return nil, nil, nclaverr.NewStoreError("import source partition %s/%s not found", source.EnclaveId, source.PartitionId)
	}
	return rec.Meta.Handle, rec.Meta.ResolvedOutputs, nil
}

// mergeImportOutputs writes outputs into the importer's resolved_outputs
// under "{alias}.{key}", re-reading the current record immediately
// before the write so this merge only ever loses a race to a
// concurrent pass's StoreConflict, never silently clobbers it.
func (r *Reconciler) mergeImportOutputs(ctx context.Context, importer *graph.Node, alias string, outputs driver.Outputs) error {
	if importer.Kind == graph.NodeEnclave {
		rec, err := r.store.GetEnclave(ctx, importer.EnclaveId)
		if err != nil || rec == nil {
			return nclaverr.NewStoreError("importer enclave %s not found", importer.EnclaveId)
		}
		rec.Meta.ResolvedOutputs = mergeAliased(rec.Meta.ResolvedOutputs, alias, outputs)
		_, err = r.store.UpsertEnclave(ctx, *rec, rec.Meta.Generation)
		return err
	}
	rec, err := r.store.GetPartition(ctx, importer.EnclaveId, importer.PartitionId)
	if err != nil || rec == nil {
		return nclaverr.NewStoreError("importer partition %s/%s not found", importer.EnclaveId, importer.PartitionId)
	}
	rec.Meta.ResolvedOutputs = mergeAliased(rec.Meta.ResolvedOutputs, alias, outputs)
	_, err = r.store.UpsertPartition(ctx, *rec, rec.Meta.Generation)
	return err
}

func mergeAliased(existing map[string]string, alias string, outputs driver.Outputs) map[string]string {
	merged := make(map[string]string, len(existing)+len(outputs))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range outputs {
		merged[alias+"."+k] = v
	}
	return merged
}
