package graph

import (
	"sort"
)

// dagBuilder computes a deterministic topological order over plan nodes
// using Kahn's algorithm, breaking ties within a level by (enclave_id,
// partition_id). Each level is drained in full before the next is
// formed, so the tie-break fixes the order within a level; it does not
// change which nodes land in which level.
type dagBuilder struct {
	nodes    map[NodeId]*Node
	edges    map[NodeId][]NodeId // node -> nodes it depends on
	children map[NodeId][]NodeId // node -> nodes that depend on it
	inDegree map[NodeId]int
}

func newDAGBuilder(nodes map[NodeId]*Node, edges map[NodeId][]NodeId) *dagBuilder {
	b := &dagBuilder{
		nodes:    nodes,
		edges:    edges,
		children: make(map[NodeId][]NodeId),
		inDegree: make(map[NodeId]int),
	}
	for id := range nodes {
		b.inDegree[id] = 0
	}
	for node, deps := range edges {
		b.inDegree[node] = len(deps)
		for _, dep := range deps {
			b.children[dep] = append(b.children[dep], node)
		}
	}
	return b
}

// detectCycles runs a DFS cycle check and returns the member set of the
// first cycle found, or nil if the graph is acyclic.
func (b *dagBuilder) detectCycles() []NodeId {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[NodeId]int, len(b.nodes))
	var path []NodeId

	var cycle []NodeId
	var visit func(id NodeId) bool
	visit = func(id NodeId) bool {
		state[id] = visiting
		path = append(path, id)
		for _, dep := range b.edges[id] {
			switch state[dep] {
			case visiting:
				start := -1
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append([]NodeId{}, path[start:]...)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return false
	}

	ids := sortedNodeIds(b.nodes)
	for _, id := range ids {
		if state[id] == unvisited {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// computeOrder runs Kahn's algorithm, sorting each level's ready set by
// (enclave_id, partition_id) before releasing its children, producing a
// deterministic order identical across runs on the same Plan. It also
// records the wave each node was released in, so callers that want to
// run independent nodes concurrently don't have to re-derive levels
// from Edges themselves.
func (b *dagBuilder) computeOrder() ([]NodeId, map[NodeId]int) {
	inDegree := make(map[NodeId]int, len(b.inDegree))
	for id, d := range b.inDegree {
		inDegree[id] = d
	}

	var ready []NodeId
	for id, d := range inDegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sortNodeIds(ready, b.nodes)

	var order []NodeId
	level := make(map[NodeId]int, len(b.nodes))
	depth := 0
	for len(ready) > 0 {
		var next []NodeId
		for _, id := range ready {
			order = append(order, id)
			level[id] = depth
			for _, child := range b.children[id] {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		sortNodeIds(next, b.nodes)
		ready = next
		depth++
	}

	return order, level
}

func sortedNodeIds(nodes map[NodeId]*Node) []NodeId {
	ids := make([]NodeId, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sortNodeIds(ids, nodes)
	return ids
}

// sortNodeIds sorts in place by (enclave_id, partition_id) lexically;
// enclave nodes (empty partition id) sort before their own partitions.
func sortNodeIds(ids []NodeId, nodes map[NodeId]*Node) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := nodes[ids[i]], nodes[ids[j]]
		if a.EnclaveId != b.EnclaveId {
			return a.EnclaveId < b.EnclaveId
		}
		return a.PartitionId < b.PartitionId
	})
}

func formatCycle(cycle []NodeId) string {
	s := ""
	for i, id := range cycle {
		if i > 0 {
			s += " -> "
		}
		s += string(id)
	}
	return s
}
