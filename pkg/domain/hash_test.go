package domain

import "testing"

func TestDesiredStateInput_Hash_StableAcrossMapOrder(t *testing.T) {
	a := DesiredStateInput{
		EnclaveId:   "prod",
		PartitionId: "web",
		Backend:     BackendTerraform,
		Source:      "./infra/web",
		Inputs: map[string]string{
			"replicas": "3",
			"region":   "us-east-1",
		},
	}
	b := DesiredStateInput{
		EnclaveId:   "prod",
		PartitionId: "web",
		Backend:     BackendTerraform,
		Source:      "./infra/web",
		Inputs: map[string]string{
			"region":   "us-east-1",
			"replicas": "3",
		},
	}

	if a.Hash() != b.Hash() {
		t.Errorf("hashes differ despite identical content in different map order: %s != %s", a.Hash(), b.Hash())
	}
}

func TestDesiredStateInput_Hash_ChangesWithContent(t *testing.T) {
	a := DesiredStateInput{EnclaveId: "prod", PartitionId: "web", Inputs: map[string]string{"replicas": "3"}}
	b := DesiredStateInput{EnclaveId: "prod", PartitionId: "web", Inputs: map[string]string{"replicas": "4"}}

	if a.Hash() == b.Hash() {
		t.Errorf("expected different hashes for different inputs")
	}
}

func TestHandle_Equal(t *testing.T) {
	h1 := Handle("abc")
	h2 := Handle("abc")
	h3 := Handle("xyz")

	if !h1.Equal(h2) {
		t.Errorf("expected equal handles to compare equal")
	}
	if h1.Equal(h3) {
		t.Errorf("expected unequal handles to compare unequal")
	}
	var zero Handle
	if !zero.IsZero() {
		t.Errorf("expected zero-value handle to report IsZero")
	}
}
