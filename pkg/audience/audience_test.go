package audience

import (
	"context"
	"testing"
)

func TestChecker_Admits(t *testing.T) {
	c, err := NewChecker(context.Background())
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}

	cases := []struct {
		audience string
		importer string
		want     bool
	}{
		{"public", "anything", true},
		{"any_enclave", "anything", true},
		{"vpn", "anything", true},
		{"enclave:prod", "prod", true},
		{"enclave:prod", "staging", false},
		{"partition:db", "prod", false},
	}

	for _, c2 := range cases {
		got, err := c.Admits(context.Background(), c2.audience, c2.importer)
		if err != nil {
			t.Fatalf("Admits(%q, %q): %v", c2.audience, c2.importer, err)
		}
		if got != c2.want {
			t.Errorf("Admits(%q, %q) = %v, want %v", c2.audience, c2.importer, got, c2.want)
		}
	}
}
