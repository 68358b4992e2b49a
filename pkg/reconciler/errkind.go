package reconciler

import "github.com/dragon-panic/nclav/pkg/nclaverr"

// errKind projects a classified error down to the taxonomy label
// spec.md §7 requires every ResourceError to carry.
func errKind(err error) string {
	switch {
	case nclaverr.IsValidation(err):
		return "ValidationError"
	case nclaverr.IsConfig(err):
		return "ConfigError"
	case nclaverr.IsStoreConflict(err):
		return "StoreConflict"
	case nclaverr.IsStoreError(err):
		return "StoreError"
	case nclaverr.IsDriverError(err):
		return "DriverError"
	case nclaverr.IsIacError(err):
		return "IacError"
	case nclaverr.IsLockConflict(err):
		return "LockConflict"
	case nclaverr.IsTimeout(err):
		return "Timeout"
	default:
		return "Error"
	}
}
