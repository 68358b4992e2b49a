package reconciler

import (
	"context"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/graph"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// cloudResolution is the per-enclave outcome of spec.md §4.6 step 4:
// either a usable driver and the cloud tag it was resolved under, or
// the ConfigError that made this enclave unprovisionable this pass.
type cloudResolution struct {
	driver driver.Driver
	cloud  domain.CloudTag
	err    error
}

// resolveClouds resolves the effective driver for every desired
// enclave up front, so unconfigured clouds are reported once and the
// enclave is marked Error without attempting any of its resources.
func (r *Reconciler) resolveClouds(ctx context.Context, plan *graph.Plan, result *Result) map[domain.EnclaveId]cloudResolution {
	out := make(map[domain.EnclaveId]cloudResolution, len(plan.Enclaves))
	for id, decl := range plan.Enclaves {
		d, cloud, err := r.drivers.Resolve(decl.Cloud)
		if err != nil {
			err = nclaverr.NewConfigError("enclave %s: %s", id, err).WithResource(string(id))
			result.addError(string(id), err)
		}
		out[id] = cloudResolution{driver: d, cloud: cloud, err: err}
	}
	return out
}
