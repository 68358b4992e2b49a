package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/graph"
)

// blockSet tracks, across one level-by-level walk, which nodes failed
// or were skipped — and therefore must block every node that depends
// on them, transitively, per spec.md §4.6's failure-isolation rule.
type blockSet struct {
	mu      sync.Mutex
	blocked map[graph.NodeId]bool
}

func newBlockSet() *blockSet {
	return &blockSet{blocked: make(map[graph.NodeId]bool)}
}

func (b *blockSet) mark(id graph.NodeId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[id] = true
}

func (b *blockSet) isBlocked(id graph.NodeId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocked[id]
}

func (b *blockSet) anyBlocked(ids []graph.NodeId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if b.blocked[id] {
			return true
		}
	}
	return false
}

// globalFanout bounds how many nodes of one level run concurrently
// overall, independent of the narrower per-enclave partition-provision
// semaphore applied inside processPartitionNode.
const globalFanout = 16

// walkPlan runs spec.md §4.6 step 5: the plan's levels in order, each
// level's independent nodes concurrently, skipping (marking Pending,
// not Error) any node whose dependency failed or was itself skipped.
func (r *Reconciler) walkPlan(ctx context.Context, plan *graph.Plan, snap *appliedState, diff *diffSet, clouds map[domain.EnclaveId]cloudResolution, runId string, result *Result) *blockSet {
	blocked := newBlockSet()

	for id, res := range clouds {
		if res.err != nil {
			blocked.mark(graph.NodeId(id))
		}
	}

	for _, level := range plan.Levels() {
		runBounded(level, globalFanout, func(id graph.NodeId) {
			node := plan.Nodes[id]
			if node == nil {
				return
			}

			if blocked.isBlocked(id) || blocked.anyBlocked(plan.Edges[id]) {
				r.markPending(ctx, node, runId)
				blocked.mark(id)
				return
			}

			var err error
			switch node.Kind {
			case graph.NodeEnclave:
				err = r.processEnclaveNode(ctx, plan, snap, diff, clouds, node.EnclaveId, runId, result)
			case graph.NodePartition:
				err = r.processPartitionNode(ctx, plan, snap, diff, clouds, node.EnclaveId, node.PartitionId, runId, result)
			}
			if err != nil {
				blocked.mark(id)
			}
		})
	}

	return blocked
}

// markPending records that a node was never attempted this pass
// because a dependency failed: an existing record that is not Active
// has its status set to Pending, and its desired_hash is left as it
// was. A node with no record, or an Active one, is left untouched.
func (r *Reconciler) markPending(ctx context.Context, node *graph.Node, runId string) {
	if node.Kind == graph.NodeEnclave {
		rec, err := r.store.GetEnclave(ctx, node.EnclaveId)
		if err != nil || rec == nil || rec.Meta.Status == domain.StatusActive {
			return
		}
		rec.Meta.Status = domain.StatusPending
		_, _ = r.store.UpsertEnclave(ctx, *rec, rec.Meta.Generation)
		return
	}

	rec, err := r.store.GetPartition(ctx, node.EnclaveId, node.PartitionId)
	if err != nil || rec == nil || rec.Meta.Status == domain.StatusActive {
		return
	}
	rec.Meta.Status = domain.StatusPending
	_, _ = r.store.UpsertPartition(ctx, *rec, rec.Meta.Generation)
}

// transitionMeta starts a status transition: it carries over CreatedAt/
// Generation/Handle from the existing record (zero value if this is a
// first-time create) and stamps UpdatedAt/LastSeenAt/Status fresh.
func transitionMeta(existing domain.ResourceMeta, status domain.ResourceStatus) domain.ResourceMeta {
	m := existing
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.Status = status
	m.UpdatedAt = now
	m.LastSeenAt = now
	m.LastError = nil
	return m
}
