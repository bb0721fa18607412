// Package registry discovers installed workload implementations, resolves a
// workload name to a live instance, and installs new workload packages from a
// git repository or local path.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/workload"
)

// ErrUnknownWorkload is returned when a name is not registered.
var ErrUnknownWorkload = errors.New("unknown workload")

// InstallError wraps a failure while installing a workload package. The
// registry is left unchanged when installation fails.
type InstallError struct {
	Source string
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install workload from %s: %v", e.Source, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Builtin pairs a compiled-in workload descriptor with its factory. The set
// of builtins is the declarative manifest loaded once at process start; Go
// has no dynamic code loading, so every installable entrypoint must name one
// of these factories.
type Builtin struct {
	Descriptor model.WorkloadDescriptor
	Factory    workload.Factory
}

// Registry maps workload names to installed descriptors and their factories.
// It is constructed once per process invocation and passed by reference,
// never accessed as ambient global state.
type Registry struct {
	mu        sync.RWMutex
	env       workload.Env
	factories map[string]workload.Factory          // entrypoint -> factory
	descs     map[string]model.WorkloadDescriptor  // name -> descriptor
	builtins  map[string]string                    // name -> entrypoint, fixed at startup
	catalog   *catalog
}

// New builds a registry from the builtin manifest plus the descriptors
// previously installed into the catalog at catalogPath. Catalog entries whose
// entrypoint no longer resolves are skipped rather than failing startup.
func New(env workload.Env, catalogPath string, builtins []Builtin) (*Registry, error) {
	r := &Registry{
		env:       env,
		factories: make(map[string]workload.Factory),
		descs:     make(map[string]model.WorkloadDescriptor),
		builtins:  make(map[string]string),
		catalog:   &catalog{path: catalogPath},
	}

	for _, b := range builtins {
		if b.Descriptor.Entrypoint == "" {
			return nil, fmt.Errorf("builtin %q: entrypoint is required", b.Descriptor.Name)
		}
		if _, dup := r.factories[b.Descriptor.Entrypoint]; dup {
			return nil, fmt.Errorf("builtin entrypoint %q registered twice", b.Descriptor.Entrypoint)
		}
		r.factories[b.Descriptor.Entrypoint] = b.Factory
		r.descs[b.Descriptor.Name] = b.Descriptor
		r.builtins[b.Descriptor.Name] = b.Descriptor.Entrypoint
	}

	installed, err := r.catalog.load()
	if err != nil {
		return nil, fmt.Errorf("load workload catalog: %w", err)
	}
	for name, desc := range installed {
		if _, ok := r.factories[desc.Entrypoint]; !ok {
			if env.Logger != nil {
				env.Logger.Warn("skipping installed workload with unresolvable entrypoint",
					"workload", name, "entrypoint", desc.Entrypoint)
			}
			continue
		}
		r.descs[name] = desc
	}

	return r, nil
}

// List returns all installed workload descriptors, name-sorted.
func (r *Registry) List() []model.WorkloadDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]model.WorkloadDescriptor, 0, len(r.descs))
	for _, d := range r.descs {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Name < descs[j].Name
	})
	return descs
}

// Describe returns the descriptor registered under name.
func (r *Registry) Describe(name string) (*model.WorkloadDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descs[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownWorkload)
	}
	return &d, nil
}

// Resolve returns a live instance of the workload registered under name.
// A fresh instance is constructed per call; workload state lives behind the
// implementation, not in the instance.
func (r *Registry) Resolve(name string) (workload.Workload, error) {
	r.mu.RLock()
	d, ok := r.descs[name]
	var factory workload.Factory
	if ok {
		factory = r.factories[d.Entrypoint]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownWorkload)
	}
	if factory == nil {
		return nil, fmt.Errorf("%q: entrypoint %q is not resolvable", name, d.Entrypoint)
	}

	wl, err := factory(r.env)
	if err != nil {
		return nil, fmt.Errorf("construct workload %q: %w", name, err)
	}
	return wl, nil
}

// register validates and records an installed descriptor, replacing any
// previous entry wholesale. Caller holds no locks.
func (r *Registry) register(source string, desc *model.WorkloadDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[desc.Entrypoint]; !ok {
		return &InstallError{Source: source, Err: fmt.Errorf("entrypoint %q does not resolve to a known factory", desc.Entrypoint)}
	}
	if ep, builtin := r.builtins[desc.Name]; builtin && ep != desc.Entrypoint {
		return &InstallError{Source: source, Err: fmt.Errorf("name %q collides with a builtin workload using a different entrypoint", desc.Name)}
	}

	next := make(map[string]model.WorkloadDescriptor)
	for name := range r.descs {
		if _, builtin := r.builtins[name]; !builtin {
			next[name] = r.descs[name]
		}
	}
	next[desc.Name] = *desc

	// Persist before mutating in-memory state so a write failure leaves the
	// registry unchanged.
	if err := r.catalog.save(next); err != nil {
		return &InstallError{Source: source, Err: err}
	}

	r.descs[desc.Name] = *desc
	return nil
}
