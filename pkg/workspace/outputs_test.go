package workspace

import (
	"testing"

	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

func TestParseOutputs_ProjectsValuesAndChecksDeclared(t *testing.T) {
	raw := []byte(`{
		"hostname": {"sensitive": false, "type": "string", "value": "db.internal"},
		"port": {"sensitive": false, "type": "number", "value": 5432}
	}`)

	out, err := ParseOutputs(raw, []string{"hostname", "port"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out["hostname"] != "db.internal" {
		t.Errorf("expected hostname db.internal, got %q", out["hostname"])
	}
	if out["port"] != "5432" {
		t.Errorf("expected port 5432, got %q", out["port"])
	}
}

func TestParseOutputs_MissingDeclaredKeyIsDriverError(t *testing.T) {
	raw := []byte(`{"hostname": {"sensitive": false, "type": "string", "value": "db.internal"}}`)

	_, err := ParseOutputs(raw, []string{"hostname", "port"})
	if !nclaverr.IsDriverError(err) {
		t.Errorf("expected DriverError, got %v", err)
	}
}
