package driver

import (
	"fmt"
	"sync"

	"github.com/dragon-panic/nclav/pkg/domain"
)

// Registry maps a cloud tag to a registered Driver and carries a
// default cloud for enclaves that declare none.
type Registry struct {
	mu sync.RWMutex

	drivers      map[domain.CloudTag]Driver
	defaultCloud domain.CloudTag
}

// NewRegistry constructs an empty registry. defaultCloud is the cloud
// tag used for enclaves that declare no explicit cloud.
func NewRegistry(defaultCloud domain.CloudTag) *Registry {
	return &Registry{
		drivers:      make(map[domain.CloudTag]Driver),
		defaultCloud: defaultCloud,
	}
}

// Register installs a driver under the given cloud tag, replacing any
// prior registration for that tag.
func (r *Registry) Register(cloud domain.CloudTag, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[cloud] = d
}

// Resolve returns the effective driver for an enclave: the driver
// registered under its explicit cloud, or under the registry default
// if the enclave declares none.
func (r *Registry) Resolve(cloud domain.CloudTag) (Driver, domain.CloudTag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	effective := cloud
	if effective == "" {
		effective = r.defaultCloud
	}
	d, ok := r.drivers[effective]
	if !ok {
		return nil, effective, fmt.Errorf("driver not configured for cloud %q", effective)
	}
	return d, effective, nil
}

// DefaultCloud returns the registry's configured default cloud tag.
func (r *Registry) DefaultCloud() domain.CloudTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultCloud
}
