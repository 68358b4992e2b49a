// Package nclaverr defines the classified error type used across nclav's
// components: graph validation, storage, drivers, IaC orchestration, and
// the HTTP edge all return *Error so callers can branch on Kind without
// string matching.
package nclaverr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the taxonomy buckets every nclav
// component reports through.
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindConfig        Kind = "ConfigError"
	KindStoreConflict Kind = "StoreConflict"
	KindStoreError    Kind = "StoreError"
	KindDriverError   Kind = "DriverError"
	KindIacError      Kind = "IacError"
	KindLockConflict  Kind = "LockConflict"
	KindTimeout       Kind = "Timeout"
)

// DriverSubKind narrows a KindDriverError into the specific failure mode
// a driver reported.
type DriverSubKind string

const (
	DriverProvisionFailed  DriverSubKind = "ProvisionFailed"
	DriverNotFound         DriverSubKind = "NotFound"
	DriverPermissionDenied DriverSubKind = "PermissionDenied"
)

// Error is the classified error type returned by every nclav component.
type Error struct {
	Kind       Kind
	DriverSub  DriverSubKind // set only when Kind == KindDriverError
	Message    string
	ResourceId string
	Operation  string
	Err        error
	Details    map[string]any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.ResourceId != "" {
		msg = fmt.Sprintf("%s [resource=%s]", msg, e.ResourceId)
	}
	if e.Operation != "" {
		msg = fmt.Sprintf("%s [op=%s]", msg, e.Operation)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, &Error{Kind: ...}) comparisons by Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(format string, args ...any) *Error {
	return newErr(KindValidation, format, args...)
}
func NewConfigError(format string, args ...any) *Error { return newErr(KindConfig, format, args...) }
func NewStoreConflict(format string, args ...any) *Error {
	return newErr(KindStoreConflict, format, args...)
}
func NewStoreError(format string, args ...any) *Error { return newErr(KindStoreError, format, args...) }
func NewIacError(format string, args ...any) *Error   { return newErr(KindIacError, format, args...) }
func NewLockConflict(format string, args ...any) *Error {
	return newErr(KindLockConflict, format, args...)
}
func NewTimeout(format string, args ...any) *Error { return newErr(KindTimeout, format, args...) }

// NewDriverError builds a KindDriverError with the given sub-kind.
func NewDriverError(sub DriverSubKind, format string, args ...any) *Error {
	e := newErr(KindDriverError, format, args...)
	e.DriverSub = sub
	return e
}

// WithResource sets the resource identifier (enclave id, or
// "enclave/partition" compound) the error pertains to.
func (e *Error) WithResource(id string) *Error {
	e.ResourceId = id
	return e
}

// WithOperation sets the operation name (e.g. "provision_partition").
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithErr wraps a lower-level cause.
func (e *Error) WithErr(err error) *Error {
	e.Err = err
	return e
}

// WithDetail attaches a single structured detail key/value.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Is* predicates let callers branch on classification without importing
// the Kind constants directly.
func IsValidation(err error) bool    { return hasKind(err, KindValidation) }
func IsConfig(err error) bool        { return hasKind(err, KindConfig) }
func IsStoreConflict(err error) bool { return hasKind(err, KindStoreConflict) }
func IsStoreError(err error) bool    { return hasKind(err, KindStoreError) }
func IsDriverError(err error) bool   { return hasKind(err, KindDriverError) }
func IsIacError(err error) bool      { return hasKind(err, KindIacError) }
func IsLockConflict(err error) bool  { return hasKind(err, KindLockConflict) }
func IsTimeout(err error) bool       { return hasKind(err, KindTimeout) }

// IsRetryable reports whether the operation that produced err is safe to
// retry without operator intervention: lock contention and timeouts are,
// validation/config/driver-permission failures are not.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindLockConflict, KindTimeout, KindStoreConflict:
		return true
	case KindDriverError:
		return e.DriverSub != DriverPermissionDenied
	default:
		return false
	}
}

func hasKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
