// Package graph parses a tree of enclave/partition declarations into a
// validated Plan: a graph of import/export edges plus a deterministic
// topological order. No partial acceptance — a Plan is either fully
// valid or rejected with the complete set of issues found.
package graph

import (
	"fmt"
	"strings"

	"github.com/dragon-panic/nclav/pkg/domain"
)

// NodeKind distinguishes enclave nodes from partition nodes in the plan
// graph.
type NodeKind string

const (
	NodeEnclave   NodeKind = "enclave"
	NodePartition NodeKind = "partition"
)

// NodeId uniquely names a node in the plan graph: an enclave node is
// keyed by enclave id alone; a partition node by "{enclave}/{partition}".
type NodeId string

func enclaveNodeId(e domain.EnclaveId) NodeId {
	return NodeId(e)
}

func partitionNodeId(e domain.EnclaveId, p domain.PartitionId) NodeId {
	return NodeId(fmt.Sprintf("%s/%s", e, p))
}

// Node is one vertex of the plan graph.
type Node struct {
	Id          NodeId
	Kind        NodeKind
	EnclaveId   domain.EnclaveId
	PartitionId domain.PartitionId // empty for enclave nodes
}

// ResolvedImport is a precomputed import->export resolution: which
// export, owned by which node, satisfies a given import declaration.
type ResolvedImport struct {
	Importer     NodeId
	Import       domain.ImportDecl
	SourceNode   NodeId
	SourceExport domain.ExportDecl
}

// Plan is the output of Validate: the original declarations interned by
// id, the adjacency list induced by imports, a deterministic topological
// order, and precomputed import resolutions.
type Plan struct {
	Enclaves map[domain.EnclaveId]*domain.EnclaveDecl

	Nodes map[NodeId]*Node

	// Edges maps a node to the set of nodes it depends on (its imports'
	// sources); the reconciler walks TopoOrder and expects each node's
	// dependencies to already have been processed.
	Edges map[NodeId][]NodeId

	// TopoOrder is the deterministic topological order: among nodes of
	// equal depth, ties are broken by (enclave_id, partition_id).
	TopoOrder []NodeId

	// Level gives each node's wave number in the Kahn's-algorithm walk
	// that produced TopoOrder. Nodes sharing a level have no edge
	// between them (directly or transitively) and may be processed
	// concurrently; a node's level is always greater than every one of
	// its dependencies'.
	Level map[NodeId]int

	// ResolvedImports lists every import in the plan with its resolved
	// source, precomputed so the reconciler never re-resolves.
	ResolvedImports []ResolvedImport
}

// Levels groups TopoOrder by Level, in ascending level order, preserving
// TopoOrder's deterministic tie-break within each level.
func (p *Plan) Levels() [][]NodeId {
	if len(p.TopoOrder) == 0 {
		return nil
	}
	maxLevel := 0
	for _, id := range p.TopoOrder {
		if l := p.Level[id]; l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]NodeId, maxLevel+1)
	for _, id := range p.TopoOrder {
		l := p.Level[id]
		levels[l] = append(levels[l], id)
	}
	return levels
}

// EnclavePartitions returns decl's partitions in declaration order.
func (p *Plan) EnclavePartitions(id domain.EnclaveId) []domain.PartitionDecl {
	e, ok := p.Enclaves[id]
	if !ok {
		return nil
	}
	return e.Partitions
}

// TopoOrderEnclaveIds returns the distinct enclave ids represented in
// TopoOrder, in their first-appearance order (which is itself
// dependency-respecting since an enclave's own node always precedes its
// partitions).
func (p *Plan) TopoOrderEnclaveIds() []domain.EnclaveId {
	seen := make(map[domain.EnclaveId]bool)
	var out []domain.EnclaveId
	for _, id := range p.TopoOrder {
		n := p.Nodes[id]
		if !seen[n.EnclaveId] {
			seen[n.EnclaveId] = true
			out = append(out, n.EnclaveId)
		}
	}
	return out
}

// ValidationErrors is the full, accumulated set of issues found while
// validating a set of declarations. It is never partial: every check
// runs regardless of earlier failures.
type ValidationErrors struct {
	Issues []string
}

func (v *ValidationErrors) add(format string, args ...any) {
	v.Issues = append(v.Issues, fmt.Sprintf(format, args...))
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Issues) > 0
}

func (v *ValidationErrors) Error() string {
	return strings.Join(v.Issues, "; ")
}
