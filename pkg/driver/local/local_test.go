package local

import (
	"context"
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
)

func TestProvisionEnclave_IdempotentOnExistingHandle(t *testing.T) {
	d := New("")
	ctx := context.Background()
	enclave := domain.EnclaveDecl{Id: "acme-dev"}

	h1, _, err := d.ProvisionEnclave(ctx, enclave, nil)
	if err != nil {
		t.Fatalf("first provision: %v", err)
	}
	if h1.IsZero() {
		t.Fatal("expected non-zero handle")
	}

	h2, _, err := d.ProvisionEnclave(ctx, enclave, h1)
	if err != nil {
		t.Fatalf("second provision: %v", err)
	}
	if !h2.Equal(h1) {
		t.Errorf("expected idempotent handle, got %q vs %q", h2, h1)
	}
}

func TestObserveEnclave_PendingUntilHandle(t *testing.T) {
	d := New("")
	ctx := context.Background()
	enclave := domain.EnclaveDecl{Id: "acme-dev"}

	status, err := d.ObserveEnclave(ctx, enclave, nil)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if status != domain.StatusPending {
		t.Errorf("expected Pending, got %s", status)
	}

	h, _, err := d.ProvisionEnclave(ctx, enclave, nil)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	status, err = d.ObserveEnclave(ctx, enclave, h)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if status != domain.StatusActive {
		t.Errorf("expected Active, got %s", status)
	}
}

func TestProvisionImport_PassesThroughOutputs(t *testing.T) {
	d := New("")
	ctx := context.Background()

	in := map[string]string{"hostname": "db.internal", "port": "5432"}
	out, err := d.ProvisionImport(ctx, "api", domain.ImportDecl{From: "db", ExportName: "postgres", Alias: "db"}, nil, in)
	if err != nil {
		t.Fatalf("provision import: %v", err)
	}
	if out["hostname"] != "db.internal" || out["port"] != "5432" {
		t.Errorf("expected outputs passed through unchanged, got %v", out)
	}
}
