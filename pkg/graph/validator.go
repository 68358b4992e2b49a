package graph

import (
	"context"
	"sort"

	"github.com/dragon-panic/nclav/pkg/audience"
	"github.com/dragon-panic/nclav/pkg/domain"
)

// Validate runs every check against the full set of declarations and
// either returns a validated Plan or the complete accumulated set of
// issues. It never validates one enclave in isolation, and never exits
// early: every check below runs regardless of earlier failures, so a
// single response enumerates every problem in the tree at once.
func Validate(decls []domain.EnclaveDecl) (*Plan, *ValidationErrors) {
	verrs := &ValidationErrors{}

	audienceChecker, err := audience.NewChecker(context.Background())
	if err != nil {
		verrs.add("internal: compiling audience admission policy: %v", err)
		return nil, verrs
	}

	enclaves := make(map[domain.EnclaveId]*domain.EnclaveDecl, len(decls))
	partitionsByEnclave := make(map[domain.EnclaveId]map[domain.PartitionId]*domain.PartitionDecl)

	// Check 1: enclave ids unique; partition ids unique within enclave.
	for i := range decls {
		e := &decls[i]
		if _, dup := enclaves[e.Id]; dup {
			verrs.add("duplicate enclave id %q", e.Id)
			continue
		}
		enclaves[e.Id] = e

		partitions := make(map[domain.PartitionId]*domain.PartitionDecl, len(e.Partitions))
		for j := range e.Partitions {
			p := &e.Partitions[j]
			if _, dup := partitions[p.Id]; dup {
				verrs.add("enclave %q: duplicate partition id %q", e.Id, p.Id)
				continue
			}
			partitions[p.Id] = p
		}
		partitionsByEnclave[e.Id] = partitions
	}

	// Check 2: exports.
	for _, e := range enclaves {
		seenExportNames := make(map[string]bool)
		for _, ex := range e.Exports {
			if seenExportNames[ex.Name] {
				verrs.add("enclave %q: duplicate export name %q", e.Id, ex.Name)
			}
			seenExportNames[ex.Name] = true

			if !domain.IsLegalAuth(ex.Type, ex.Auth) {
				verrs.add("enclave %q: export %q has illegal (type=%s, auth=%s) pair", e.Id, ex.Name, ex.Type, ex.Auth)
			}
			if _, ok := partitionsByEnclave[e.Id][ex.TargetPartition]; !ok {
				verrs.add("enclave %q: export %q targets non-existent partition %q", e.Id, ex.Name, ex.TargetPartition)
			}
			if !validAudience(ex.To) {
				verrs.add("enclave %q: export %q has malformed audience %q", e.Id, ex.Name, ex.To)
			}
		}
	}

	// Check 3 + 4: imports, resolved against source enclave/partition
	// exports, with cross-enclave audience admission.
	var resolved []ResolvedImport
	resolveImports := func(importer NodeId, importerEnclave domain.EnclaveId, imports []domain.ImportDecl) {
		seenAlias := make(map[string]bool)
		for _, im := range imports {
			if seenAlias[im.Alias] {
				verrs.add("%s: duplicate import alias %q", importer, im.Alias)
			}
			seenAlias[im.Alias] = true

			srcPartition, isSamePartition := partitionsByEnclave[importerEnclave][domain.PartitionId(im.From)]
			srcEnclave, isEnclave := enclaves[domain.EnclaveId(im.From)]

			switch {
			case isSamePartition:
				export := findExportByName(enclaves[importerEnclave].Exports, im.ExportName)
				if export == nil || export.TargetPartition != srcPartition.Id {
					verrs.add("%s: import %q references unknown export %q on partition %q", importer, im.Alias, im.ExportName, im.From)
					continue
				}
				resolved = append(resolved, ResolvedImport{
					Importer: importer, Import: im,
					SourceNode:   partitionNodeId(importerEnclave, srcPartition.Id),
					SourceExport: *export,
				})
			case isEnclave:
				export := findExportByName(srcEnclave.Exports, im.ExportName)
				if export == nil {
					verrs.add("%s: import %q references unknown export %q on enclave %q", importer, im.Alias, im.ExportName, im.From)
					continue
				}
				if domain.EnclaveId(im.From) != importerEnclave {
					admitted, admitErr := audienceChecker.Admits(context.Background(), export.To, string(importerEnclave))
					if admitErr != nil {
						verrs.add("%s: evaluating audience admission: %v", importer, admitErr)
						continue
					}
					if !admitted {
						verrs.add("%s: cross-enclave import %q not admitted by enclave %q export %q audience %q", importer, im.Alias, im.From, im.ExportName, export.To)
						continue
					}
				}
				resolved = append(resolved, ResolvedImport{
					Importer: importer, Import: im,
					SourceNode:   enclaveNodeId(srcEnclave.Id),
					SourceExport: *export,
				})
			default:
				verrs.add("%s: import %q has unresolvable from %q (no such enclave or same-enclave partition)", importer, im.Alias, im.From)
			}
		}
	}

	for _, e := range enclaves {
		resolveImports(enclaveNodeId(e.Id), e.Id, e.Imports)
		for _, p := range e.Partitions {
			resolveImports(partitionNodeId(e.Id, p.Id), e.Id, p.Imports)
		}
	}

	// Check 5: produces/outputs contract.
	for _, e := range enclaves {
		for _, p := range e.Partitions {
			if p.Produces == "" {
				continue
			}
			mandatory := domain.MandatoryOutputs(p.Produces)
			declared := make(map[string]bool, len(p.DeclaredOutputs))
			for _, k := range p.DeclaredOutputs {
				declared[k] = true
			}
			for _, k := range mandatory {
				if !declared[k] {
					verrs.add("enclave %q partition %q: produces %q requires declared_outputs to include %q", e.Id, p.Id, p.Produces, k)
				}
			}
		}
	}

	// Check 6: template references in inputs: resolve only to declared
	// aliases or the fixed nclav_* context token set.
	for _, e := range enclaves {
		for _, p := range e.Partitions {
			aliases := make(map[string]bool)
			for _, im := range p.Imports {
				aliases[im.Alias] = true
			}
			for key, val := range p.Inputs {
				for _, ref := range ExtractRefs(val) {
					if IsContextToken(ref.Path) {
						continue
					}
					if ref.Alias != "" && aliases[ref.Alias] {
						continue
					}
					verrs.add("enclave %q partition %q: input %q references undeclared alias or token %q", e.Id, p.Id, key, ref.Path)
				}
			}
		}
	}

	// Build the node set and edges for DAG checks from the declarations
	// and the imports that resolved above.
	nodes := make(map[NodeId]*Node)
	edges := make(map[NodeId][]NodeId)
	for _, e := range enclaves {
		nodes[enclaveNodeId(e.Id)] = &Node{Id: enclaveNodeId(e.Id), Kind: NodeEnclave, EnclaveId: e.Id}
		edges[enclaveNodeId(e.Id)] = nil
		for _, p := range e.Partitions {
			nid := partitionNodeId(e.Id, p.Id)
			nodes[nid] = &Node{Id: nid, Kind: NodePartition, EnclaveId: e.Id, PartitionId: p.Id}
			// every partition depends on its own enclave node
			edges[nid] = []NodeId{enclaveNodeId(e.Id)}
		}
	}
	for _, ri := range resolved {
		edges[ri.Importer] = append(edges[ri.Importer], ri.SourceNode)
	}

	builder := newDAGBuilder(nodes, edges)

	// Check 7: cycle detection. Runs even when checks 1-6 found issues,
	// so a cycle is reported alongside them.
	if cycle := builder.detectCycles(); cycle != nil {
		verrs.add("cycle detected: %s", formatCycle(cycle))
	}

	if verrs.HasErrors() {
		return nil, verrs
	}

	// Check 8: deterministic topological order.
	order, level := builder.computeOrder()

	plan := &Plan{
		Enclaves:        enclaves,
		Nodes:           nodes,
		Edges:           edges,
		TopoOrder:       order,
		Level:           level,
		ResolvedImports: resolved,
	}
	return plan, nil
}

func findExportByName(exports []domain.ExportDecl, name string) *domain.ExportDecl {
	for i := range exports {
		if exports[i].Name == name {
			return &exports[i]
		}
	}
	return nil
}

func validAudience(to string) bool {
	switch to {
	case "public", "any_enclave", "vpn":
		return true
	}
	if len(to) > len("enclave:") && to[:len("enclave:")] == "enclave:" {
		return true
	}
	if len(to) > len("partition:") && to[:len("partition:")] == "partition:" {
		return true
	}
	return false
}

// SortedEnclaveIds returns the enclave ids in plan.Enclaves sorted
// lexically, for deterministic iteration where the caller doesn't need
// the full topological order.
func SortedEnclaveIds(plan *Plan) []domain.EnclaveId {
	ids := make([]domain.EnclaveId, 0, len(plan.Enclaves))
	for id := range plan.Enclaves {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
