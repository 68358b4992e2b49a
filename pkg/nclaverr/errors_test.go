package nclaverr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is_MatchesByKind(t *testing.T) {
	err := NewStoreConflict("generation mismatch").WithResource("prod/web")

	if !errors.Is(err, &Error{Kind: KindStoreConflict}) {
		t.Errorf("expected errors.Is to match on Kind")
	}
	if errors.Is(err, &Error{Kind: KindTimeout}) {
		t.Errorf("expected errors.Is to not match a different Kind")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewStoreError("apply failed").WithErr(cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find wrapped cause")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{NewLockConflict("held by run %s", "r1"), true},
		{NewTimeout("terraform apply exceeded 30m"), true},
		{NewStoreConflict("generation mismatch"), true},
		{NewValidationError("missing field"), false},
		{NewDriverError(DriverPermissionDenied, "denied"), false},
		{NewDriverError(DriverProvisionFailed, "quota exceeded"), true},
		{fmt.Errorf("plain error"), false},
	}
	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestNewDriverError_SetsSubKind(t *testing.T) {
	err := NewDriverError(DriverNotFound, "handle %s not found", "h1")
	if !IsDriverError(err) {
		t.Errorf("expected IsDriverError to be true")
	}
	if err.DriverSub != DriverNotFound {
		t.Errorf("expected DriverSub to be DriverNotFound, got %v", err.DriverSub)
	}
}
