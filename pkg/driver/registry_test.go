package driver

import (
	"testing"

	"github.com/dragon-panic/nclav/pkg/domain"
)

type stubDriver struct{ Driver }

func TestRegistry_ResolveDefault(t *testing.T) {
	r := NewRegistry(domain.CloudLocal)
	r.Register(domain.CloudLocal, &stubDriver{})

	d, cloud, err := r.Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cloud != domain.CloudLocal {
		t.Errorf("expected default cloud %q, got %q", domain.CloudLocal, cloud)
	}
	if d == nil {
		t.Error("expected non-nil driver")
	}
}

func TestRegistry_ResolveExplicitCloud(t *testing.T) {
	r := NewRegistry(domain.CloudLocal)
	r.Register(domain.CloudLocal, &stubDriver{})
	r.Register(domain.CloudGCP, &stubDriver{})

	_, cloud, err := r.Resolve(domain.CloudGCP)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cloud != domain.CloudGCP {
		t.Errorf("expected %q, got %q", domain.CloudGCP, cloud)
	}
}

func TestRegistry_ResolveUnconfigured(t *testing.T) {
	r := NewRegistry(domain.CloudLocal)

	_, _, err := r.Resolve(domain.CloudAWS)
	if err == nil {
		t.Error("expected error for unconfigured cloud")
	}
}
