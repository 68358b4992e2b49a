package domain

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// DesiredStateInput is the minimal, order-independent projection of a
// partition's resolved desired config that feeds desired_hash.
type DesiredStateInput struct {
	EnclaveId       EnclaveId         `json:"enclave_id"`
	PartitionId     PartitionId       `json:"partition_id"`
	Backend         BackendKind       `json:"backend"`
	Source          string            `json:"source"`
	Inputs          map[string]string `json:"inputs"`
	ResolvedImports map[string]string `json:"resolved_imports"`
}

// Hash computes the desired_hash for this partition's resolved desired
// state: a blake2b-256 digest over a canonical JSON encoding (sorted map
// keys, stable field order) so that identical desired state always hashes
// identically regardless of map iteration order.
func (d DesiredStateInput) Hash() string {
	canonical := struct {
		EnclaveId       EnclaveId   `json:"enclave_id"`
		PartitionId     PartitionId `json:"partition_id"`
		Backend         BackendKind `json:"backend"`
		Source          string      `json:"source"`
		Inputs          []kv        `json:"inputs"`
		ResolvedImports []kv        `json:"resolved_imports"`
	}{
		EnclaveId:       d.EnclaveId,
		PartitionId:     d.PartitionId,
		Backend:         d.Backend,
		Source:          d.Source,
		Inputs:          sortedKVs(d.Inputs),
		ResolvedImports: sortedKVs(d.ResolvedImports),
	}

	b, err := json.Marshal(canonical)
	if err != nil {
		// Marshal of this struct can only fail on non-UTF8 map keys,
		// which domain validation rejects upstream.
		panic(err)
	}

	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DesiredHash computes the content hash of an enclave declaration used
// to detect Update vs. NoChange: a blake2b-256 digest over the decl's
// canonical JSON encoding. Declaration-order slices (Exports, Imports,
// Subnets) are hashed in their YAML order since that order is itself
// part of the declared config; Partitions is excluded (json:"-") since
// partitions diff independently.
func (e EnclaveDecl) DesiredHash() string {
	b, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type kv struct {
	K string `json:"k"`
	V string `json:"v"`
}

func sortedKVs(m map[string]string) []kv {
	out := make([]kv, 0, len(m))
	for k, v := range m {
		out = append(out, kv{K: k, V: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].K < out[j].K })
	return out
}
