package reconciler

import (
	"context"
	"fmt"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/yamlconfig"
	"github.com/google/uuid"
)

// New constructs a Reconciler. cfg.PartitionFanout defaults to 8 when
// unset.
func New(cfg Config) *Reconciler {
	fanout := cfg.PartitionFanout
	if fanout <= 0 {
		fanout = defaultPartitionFanout
	}
	return &Reconciler{
		store:       cfg.Store,
		drivers:     cfg.Drivers,
		home:        cfg.WorkspaceHome,
		apiBaseURL:  cfg.APIBaseURL,
		bearerToken: cfg.BearerToken,
		fanout:      fanout,
		enclaveSem:  make(map[domain.EnclaveId]chan struct{}),
	}
}

// appliedState is the snapshot taken at the start of a pass (step 2).
type appliedState struct {
	enclaves   map[domain.EnclaveId]domain.EnclaveRecord
	partitions map[domain.EnclaveId]map[domain.PartitionId]domain.PartitionRecord
}

func (a *appliedState) partition(e domain.EnclaveId, p domain.PartitionId) (domain.PartitionRecord, bool) {
	m, ok := a.partitions[e]
	if !ok {
		return domain.PartitionRecord{}, false
	}
	rec, ok := m[p]
	return rec, ok
}

func (r *Reconciler) snapshot(ctx context.Context) (*appliedState, error) {
	enclaveRecs, err := r.store.ListEnclaves(ctx)
	if err != nil {
		return nil, nclaverr.NewStoreError("listing applied enclaves").WithErr(err)
	}

	snap := &appliedState{
		enclaves:   make(map[domain.EnclaveId]domain.EnclaveRecord, len(enclaveRecs)),
		partitions: make(map[domain.EnclaveId]map[domain.PartitionId]domain.PartitionRecord),
	}
	for _, rec := range enclaveRecs {
		snap.enclaves[rec.Decl.Id] = rec

		partRecs, err := r.store.ListPartitions(ctx, rec.Decl.Id)
		if err != nil {
			return nil, nclaverr.NewStoreError("listing applied partitions for %s", rec.Decl.Id).WithErr(err)
		}
		m := make(map[domain.PartitionId]domain.PartitionRecord, len(partRecs))
		for _, p := range partRecs {
			m[p.Decl.Id] = p
		}
		snap.partitions[rec.Decl.Id] = m
	}
	return snap, nil
}

// Reconcile runs one full pass: load+validate, snapshot, diff, and
// (unless req.DryRun) apply the diff in dependency order, wire imports,
// and tear down removed resources.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Result, error) {
	result := &Result{RunId: uuid.NewString(), DryRun: req.DryRun}

	decls, err := yamlconfig.Load(req.EnclavesDir)
	if err != nil {
		return nil, err
	}

	plan, verrs := graph.Validate(decls)
	if verrs != nil {
		return nil, nclaverr.NewValidationError("%s", verrs.Error())
	}

	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	diff := r.computeDiff(plan, snap)
	for _, c := range diff.changes {
		result.addChange(c.Kind, c.Resource)
	}

	if req.DryRun {
		return result, nil
	}

	// Resources absent from the new desired plan can never be an import
	// source in it (graph validation would have rejected a dangling
	// import), so it's safe to tear them down before the forward walk.
	r.teardownRemoved(ctx, diff, result.RunId, result)

	clouds := r.resolveClouds(ctx, plan, result)
	blocked := r.walkPlan(ctx, plan, snap, diff, clouds, result.RunId, result)
	r.wireImports(ctx, plan, clouds, result.RunId, result, blocked)

	return result, nil
}

// diffEntry pairs a Change with the plan node (if any) it concerns, so
// the plan walk doesn't have to re-derive it.
type diffEntry struct {
	Change
	node domain.EnclaveId
}

type diffSet struct {
	changes []diffEntry

	// enclaveKind/partitionKind record the change kind keyed by id so
	// walkPlan can look it up while walking the plan.
	enclaveKind   map[domain.EnclaveId]ChangeKind
	partitionKind map[graph.NodeId]ChangeKind

	// deletedEnclaves/deletedPartitions list applied resources absent
	// from the new desired plan, for the teardown phase.
	deletedEnclaves   []domain.EnclaveId
	deletedPartitions []domain.PartitionRecord
}

// computeDiff implements spec.md §4.6 step 3: Create when absent from
// applied, Update/NoChange by comparing desired_hash, Delete for
// applied resources absent from desired.
func (r *Reconciler) computeDiff(plan *graph.Plan, snap *appliedState) *diffSet {
	d := &diffSet{
		enclaveKind:   make(map[domain.EnclaveId]ChangeKind),
		partitionKind: make(map[graph.NodeId]ChangeKind),
	}

	desiredEnclaves := make(map[domain.EnclaveId]bool, len(plan.Enclaves))
	for id, decl := range plan.Enclaves {
		desiredEnclaves[id] = true
		existingEnclave, ok := snap.enclaves[id]
		kind := diffOne(decl.DesiredHash(), existingEnclave.Meta.DesiredHash, ok)
		d.enclaveKind[id] = kind
		d.changes = append(d.changes, diffEntry{Change: Change{Kind: kind, Resource: string(id)}, node: id})

		for _, p := range decl.Partitions {
			nid := partitionNodeId(id, p.Id)
			hash := domain.DesiredStateInput{
				EnclaveId:   id,
				PartitionId: p.Id,
				Backend:     p.Backend,
				Source:      p.Terraform.Source,
				Inputs:      p.Inputs,
			}.Hash()

			existing, ok := snap.partition(id, p.Id)
			pkind := diffOne(hash, existing.Meta.DesiredHash, ok)
			d.partitionKind[nid] = pkind
			d.changes = append(d.changes, diffEntry{Change: Change{Kind: pkind, Resource: fmt.Sprintf("%s/%s", id, p.Id)}, node: id})
		}
	}

	for id := range snap.enclaves {
		if !desiredEnclaves[id] {
			d.deletedEnclaves = append(d.deletedEnclaves, id)
			d.changes = append(d.changes, diffEntry{Change: Change{Kind: ChangeDelete, Resource: string(id)}, node: id})
		}
	}
	for encId, parts := range snap.partitions {
		desiredParts := map[domain.PartitionId]bool{}
		if decl, ok := plan.Enclaves[encId]; ok {
			for _, p := range decl.Partitions {
				desiredParts[p.Id] = true
			}
		}
		for pid, rec := range parts {
			if !desiredParts[pid] {
				d.deletedPartitions = append(d.deletedPartitions, rec)
				d.changes = append(d.changes, diffEntry{Change: Change{Kind: ChangeDelete, Resource: fmt.Sprintf("%s/%s", encId, pid)}, node: encId})
			}
		}
	}

	return d
}

// diffOne is the shared Create/Update/NoChange decision: absent ->
// Create; present with differing hash -> Update; else NoChange.
func diffOne(desiredHash, existingHash string, present bool) ChangeKind {
	if !present {
		return ChangeCreate
	}
	if existingHash != desiredHash {
		return ChangeUpdate
	}
	return ChangeNoChange
}

func partitionNodeId(e domain.EnclaveId, p domain.PartitionId) graph.NodeId {
	return graph.NodeId(fmt.Sprintf("%s/%s", e, p))
}
