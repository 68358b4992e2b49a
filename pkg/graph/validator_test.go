package graph

import (
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
)

func TestValidate_EmptyDecls(t *testing.T) {
	plan, verrs := Validate(nil)
	if verrs != nil {
		t.Fatalf("expected no errors for empty decls, got: %v", verrs)
	}
	if len(plan.TopoOrder) != 0 {
		t.Errorf("expected empty topo order, got %v", plan.TopoOrder)
	}
}

func TestValidate_S1_CrossPartitionTCPImport(t *testing.T) {
	decls := []domain.EnclaveDecl{
		{
			Id: "acme-dev",
			Partitions: []domain.PartitionDecl{
				{
					Id: "db", Produces: domain.ProducesTCP, Backend: domain.BackendTerraform,
					DeclaredOutputs: []string{"hostname", "port"},
				},
				{
					Id: "api", Produces: domain.ProducesHTTP, Backend: domain.BackendTerraform,
					DeclaredOutputs: []string{"hostname", "port"},
					Imports:         []domain.ImportDecl{{From: "db", ExportName: "postgres", Alias: "database"}},
					Inputs:          map[string]string{"db_host": "{{ database.hostname }}"},
				},
			},
			Exports: []domain.ExportDecl{
				{Name: "postgres", TargetPartition: "db", Type: domain.ProducesTCP, To: "partition:api", Auth: domain.AuthNone},
			},
		},
	}

	plan, verrs := Validate(decls)
	if verrs != nil {
		t.Fatalf("expected validation to pass, got: %v", verrs)
	}

	want := []NodeId{"acme-dev", "acme-dev/db", "acme-dev/api"}
	if len(plan.TopoOrder) != len(want) {
		t.Fatalf("expected topo order %v, got %v", want, plan.TopoOrder)
	}
	for i, id := range want {
		if plan.TopoOrder[i] != id {
			t.Errorf("topo order[%d] = %s, want %s (full: %v)", i, plan.TopoOrder[i], id, plan.TopoOrder)
		}
	}
}

func TestValidate_S2_CycleRejection(t *testing.T) {
	decls := []domain.EnclaveDecl{
		{
			Id: "enc",
			Partitions: []domain.PartitionDecl{
				{Id: "a", Backend: domain.BackendTerraform, Imports: []domain.ImportDecl{{From: "b", ExportName: "x", Alias: "bx"}}},
				{Id: "b", Backend: domain.BackendTerraform, Imports: []domain.ImportDecl{{From: "a", ExportName: "y", Alias: "ay"}}},
			},
			Exports: []domain.ExportDecl{
				{Name: "x", TargetPartition: "b", Type: domain.ProducesHTTP, To: "partition:a", Auth: domain.AuthNone},
				{Name: "y", TargetPartition: "a", Type: domain.ProducesHTTP, To: "partition:b", Auth: domain.AuthNone},
			},
		},
	}

	_, verrs := Validate(decls)
	if verrs == nil {
		t.Fatalf("expected cycle to be rejected")
	}
}

func TestValidate_S3_TypeAuthMismatch(t *testing.T) {
	decls := []domain.EnclaveDecl{
		{
			Id: "enc",
			Partitions: []domain.PartitionDecl{
				{Id: "p", Backend: domain.BackendTerraform},
			},
			Exports: []domain.ExportDecl{
				{Name: "bad", TargetPartition: "p", Type: domain.ProducesHTTP, To: "public", Auth: domain.AuthNative},
			},
		},
	}

	_, verrs := Validate(decls)
	if verrs == nil {
		t.Fatalf("expected type/auth mismatch to be rejected")
	}
}

func TestValidate_ProducesOutputsContract(t *testing.T) {
	decls := []domain.EnclaveDecl{
		{
			Id: "enc",
			Partitions: []domain.PartitionDecl{
				{Id: "p", Produces: domain.ProducesHTTP, Backend: domain.BackendTerraform},
			},
		},
	}

	_, verrs := Validate(decls)
	if verrs == nil {
		t.Fatalf("expected missing declared_outputs for produces:http to be rejected")
	}
}

func TestValidate_UndeclaredTemplateReference(t *testing.T) {
	decls := []domain.EnclaveDecl{
		{
			Id: "enc",
			Partitions: []domain.PartitionDecl{
				{
					Id: "p", Backend: domain.BackendTerraform,
					Inputs: map[string]string{"x": "{{ nope.key }}"},
				},
			},
		},
	}

	_, verrs := Validate(decls)
	if verrs == nil {
		t.Fatalf("expected undeclared alias reference to be rejected")
	}
}

func TestValidate_ContextTokenAllowed(t *testing.T) {
	decls := []domain.EnclaveDecl{
		{
			Id: "enc",
			Partitions: []domain.PartitionDecl{
				{
					Id: "p", Backend: domain.BackendTerraform,
					Inputs: map[string]string{"x": "{{ nclav_region }}"},
				},
			},
		},
	}

	_, verrs := Validate(decls)
	if verrs != nil {
		t.Fatalf("expected context token to be allowed, got: %v", verrs)
	}
}

func TestValidate_MaxPartitionIdLength(t *testing.T) {
	id63 := make([]byte, 63)
	for i := range id63 {
		id63[i] = 'a'
	}
	if !domain.ValidPartitionId(domain.PartitionId(id63)) {
		t.Errorf("expected 63-char partition id to be valid")
	}

	id64 := append(id63, 'a')
	if domain.ValidPartitionId(domain.PartitionId(id64)) {
		t.Errorf("expected 64-char partition id to be invalid")
	}
}
