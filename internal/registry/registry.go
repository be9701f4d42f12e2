package registry

import (
	"context"
	"fmt"
	"sync"
)

// Module is implemented by every compiled-in plugin. PluginID returns the
// "<project>/<plugin>" identity used throughout discovery and the state
// file; Register declares the module's node types against the registrar it
// is handed.
type Module interface {
	PluginID() string
	Register(reg *PluginRegistrar)
}

// Registry is the process-wide, concurrency-safe home of every active node
// type. All public operations serialize on mu, so Snapshot() never observes
// a torn state mid-transition.
type Registry struct {
	mu sync.RWMutex

	root      string // two-tier plugin directory tree; "" disables disk discovery
	statePath string

	// modules is the full compiled-in set, keyed by plugin id, regardless
	// of current activation state.
	modules map[string]Module

	// state tracks the lifecycle of every plugin id known to discovery.
	state map[string]PluginStatus
	// errs holds the failure message for plugins currently StatusError.
	errs map[string]string
	// hooks holds the hooks a plugin registered for itself, if any.
	hooks map[string]Hooks
	// owned maps plugin id -> the node types it currently has registered.
	owned map[string][]string
	// owner maps node type -> the plugin id that registered it.
	owner map[string]string
	// everKnownType maps node type -> the plugin id that declared it, and
	// survives Deactivate (cleared only on Delete). Snapshot uses it to
	// report "inactive" rather than "unknown" for a type whose plugin is
	// merely deactivated, not deleted.
	everKnownType map[string]string

	specs     map[string]*NodeSpec
	executors map[string]Executor
}

// New creates a Registry over the given compiled-in module set. root is the
// two-tier plugin directory used by Discover for manifests and the state
// file; pass "" to run with compiled-in modules only (no disk, no state
// file persistence).
func New(root string, modules []Module) *Registry {
	r := &Registry{
		root:          root,
		modules:       make(map[string]Module, len(modules)),
		state:         make(map[string]PluginStatus),
		errs:          make(map[string]string),
		hooks:         make(map[string]Hooks),
		owned:         make(map[string][]string),
		owner:         make(map[string]string),
		everKnownType: make(map[string]string),
		specs:         make(map[string]*NodeSpec),
		executors:     make(map[string]Executor),
	}
	if root != "" {
		r.statePath = joinStatePath(root)
	}
	for _, m := range modules {
		r.modules[m.PluginID()] = m
	}
	return r
}

// PluginRegistrar scopes RegisterNode calls to the plugin currently being
// loaded, so the registry can track ownership without the Module interface
// needing to repeat its own id on every call.
type PluginRegistrar struct {
	pluginID string
	registry *Registry
	hooks    Hooks
	err      error
}

// RegisterNode installs spec, wrapping run into the uniform Executor shape.
// spec-only (container) types pass a nil run. Re-registering a type already
// owned by this same plugin is allowed (idempotent reload); owned by a
// different plugin is an error.
func (p *PluginRegistrar) RegisterNode(spec NodeSpec, run any) {
	if p.err != nil {
		return
	}
	var exec Executor
	if run != nil {
		wrapped, err := wrapRunFunc(run, spec.PortsIn, spec.PortsOut)
		if err != nil {
			p.err = fmt.Errorf("plugin %s: node %s: %w", p.pluginID, spec.Type, err)
			return
		}
		exec = wrapped
	}

	r := p.registry
	if existingOwner, ok := r.owner[spec.Type]; ok && existingOwner != p.pluginID {
		p.err = fmt.Errorf("node type %q already owned by plugin %s", spec.Type, existingOwner)
		return
	}

	specCopy := spec
	r.specs[spec.Type] = &specCopy
	if exec != nil {
		r.executors[spec.Type] = exec
	} else {
		delete(r.executors, spec.Type)
	}
	r.owner[spec.Type] = p.pluginID
	r.everKnownType[spec.Type] = p.pluginID
	if !containsString(r.owned[p.pluginID], spec.Type) {
		r.owned[p.pluginID] = append(r.owned[p.pluginID], spec.Type)
	}
}

// SetHooks records the activate/deactivate/uninstall callbacks for the
// plugin being registered.
func (p *PluginRegistrar) SetHooks(h Hooks) {
	p.hooks = h
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// Snapshot returns an immutable copy of the current type -> (spec,
// executor) mapping, safe to read without holding the registry's lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make(map[string]*NodeSpec, len(r.specs))
	for k, v := range r.specs {
		specCopy := *v
		specs[k] = &specCopy
	}
	execs := make(map[string]Executor, len(r.executors))
	for k, v := range r.executors {
		execs[k] = v
	}
	inactive := make(map[string]string)
	for nodeType, pluginID := range r.everKnownType {
		if _, active := specs[nodeType]; active {
			continue
		}
		if r.state[pluginID] == StatusInactive {
			inactive[nodeType] = pluginID
		}
	}
	return Snapshot{Specs: specs, Executors: execs, InactiveTypes: inactive}
}

// load calls module.Register under the write lock, then records any
// wrapping error it accumulated. On error, anything the module managed to
// register before the error is left in place (modules register all-or-hope
// in practice; spec-only failures are expected to be rare and caught in
// development).
func (r *Registry) load(ctx context.Context, pluginID string, m Module) error {
	reg := &PluginRegistrar{pluginID: pluginID, registry: r}
	m.Register(reg)
	if reg.err != nil {
		return reg.err
	}
	if reg.hooks.OnActivate != nil || reg.hooks.OnDeactivate != nil || reg.hooks.OnUninstall != nil {
		r.hooks[pluginID] = reg.hooks
	}
	return nil
}

// unload removes every node type the plugin currently owns from the live
// maps. It does not touch state/hooks bookkeeping.
func (r *Registry) unload(pluginID string) {
	for _, nodeType := range r.owned[pluginID] {
		delete(r.specs, nodeType)
		delete(r.executors, nodeType)
		delete(r.owner, nodeType)
	}
	delete(r.owned, pluginID)
}
