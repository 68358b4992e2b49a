package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Logging.Level = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}

	cfg = DefaultConfig()
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range sampling rate")
	}

	cfg = DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddress = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty metrics listen address when enabled")
	}
}

func TestLogger_WithFieldsWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zlog: zerolog.New(&buf)}

	l = l.WithRunID("run-1").WithEnclave("acme-dev")
	l.Info("reconcile started")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-1"`) {
		t.Errorf("expected run_id field in log output, got: %s", out)
	}
	if !strings.Contains(out, `"enclave_id":"acme-dev"`) {
		t.Errorf("expected enclave_id field in log output, got: %s", out)
	}
	if !strings.Contains(out, "reconcile started") {
		t.Errorf("expected message in log output, got: %s", out)
	}
}

func TestFromContext_DefaultsWhenUnset(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("expected a non-nil default logger")
	}
}

func TestNewMetrics_DisabledIsNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	// Must not panic on a disabled, unregistered collector.
	m.RecordReconcileStarted(false)
	m.RecordReconcileCompleted("ok", 0)
	m.RecordDriverCall("gcp", "provision_enclave", 0, nil)
	m.RecordError("DriverError")
}

func TestNewMetrics_EnabledRegistersCollectors(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "nclav_test"})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.registry == nil {
		t.Fatal("expected a registry when metrics are enabled")
	}
	m.RecordReconcileStarted(true)
	m.RecordReconcileCompleted("ok", 0)
}
