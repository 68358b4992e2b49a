package workspace

import (
	"context"
	"strings"
	"testing"
)

func TestRun_CapturesStdoutAndExitCode(t *testing.T) {
	dir := t.TempDir()
	result := Run(context.Background(), "/bin/sh", dir, []string{"-c", "echo hello; echo world 1>&2"}, nil)

	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", result.ExitCode)
	}
	if !strings.Contains(result.Log, "hello") || !strings.Contains(result.Log, "world") {
		t.Errorf("expected both stdout and stderr lines captured, got %q", result.Log)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	result := Run(context.Background(), "/bin/sh", dir, []string{"-c", "exit 3"}, nil)

	if result.ExitCode == nil || *result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %v", result.ExitCode)
	}
}

func TestRun_EnvPropagatesToChild(t *testing.T) {
	dir := t.TempDir()
	result := Run(context.Background(), "/bin/sh", dir, []string{"-c", "echo $NCLAV_TEST_VAR"}, map[string]string{"NCLAV_TEST_VAR": "present"})

	if !strings.Contains(result.Log, "present") {
		t.Errorf("expected injected env var to be visible to child, got %q", result.Log)
	}
}
