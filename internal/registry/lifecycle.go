package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/burstflow/internal/ctxlog"
)

// Activate removes the Inactive marker from the state file, loads the
// plugin's module, and runs on_activate if present. It fails if no
// compiled module is registered for pluginID; the on-disk plugin tree is
// not consulted. It is a no-op on an already-active plugin.
func (r *Registry) Activate(ctx context.Context, pluginID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state[pluginID] == StatusActive {
		return nil
	}
	if r.state[pluginID] == StatusDeleted {
		return fmt.Errorf("plugin %s was deleted", pluginID)
	}
	if _, known := r.modules[pluginID]; !known {
		return fmt.Errorf("plugin %s does not exist", pluginID)
	}

	if r.statePath != "" {
		state := readStateFile(r.statePath, ctxlog.FromContext(ctx))
		delete(state, pluginID)
		if err := writeStateFile(r.statePath, state); err != nil {
			return fmt.Errorf("writing plugin state: %w", err)
		}
	}

	r.loadOne(ctx, pluginID)
	if r.state[pluginID] == StatusError {
		return fmt.Errorf("activating %s: %s", pluginID, r.errs[pluginID])
	}
	r.runHook(ctx, pluginID, func(h Hooks) func(context.Context) error { return h.OnActivate })
	return nil
}

// Deactivate writes "inactive" to the state file, removes every node type
// owned by the plugin, and runs on_deactivate. It is a no-op on an
// already-inactive plugin.
func (r *Registry) Deactivate(ctx context.Context, pluginID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state[pluginID] == StatusInactive {
		return nil
	}
	if _, known := r.state[pluginID]; !known {
		if _, known := r.modules[pluginID]; !known {
			return fmt.Errorf("plugin %s does not exist", pluginID)
		}
	}

	if r.statePath != "" {
		state := readStateFile(r.statePath, ctxlog.FromContext(ctx))
		state[pluginID] = "inactive"
		if err := writeStateFile(r.statePath, state); err != nil {
			return fmt.Errorf("writing plugin state: %w", err)
		}
	}

	r.runHook(ctx, pluginID, func(h Hooks) func(context.Context) error { return h.OnDeactivate })
	r.unload(pluginID)
	r.state[pluginID] = StatusInactive
	return nil
}

// Delete requires the plugin to be Inactive, runs on_uninstall, removes its
// on-disk directory (if any), and purges its state-file entry. A deleted
// plugin id can never be activated again in this process.
func (r *Registry) Delete(ctx context.Context, pluginID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state[pluginID] != StatusInactive {
		return fmt.Errorf("plugin %s must be inactive before it can be deleted", pluginID)
	}

	r.runHook(ctx, pluginID, func(h Hooks) func(context.Context) error { return h.OnUninstall })

	if r.root != "" {
		if err := removePluginDir(r.root, pluginID); err != nil {
			ctxlog.FromContext(ctx).Warn("failed to remove plugin directory", "plugin", pluginID, "error", err)
		}
		state := readStateFile(r.statePath, ctxlog.FromContext(ctx))
		delete(state, pluginID)
		if err := writeStateFile(r.statePath, state); err != nil {
			return fmt.Errorf("writing plugin state: %w", err)
		}
	}

	for nodeType, owner := range r.everKnownType {
		if owner == pluginID {
			delete(r.everKnownType, nodeType)
		}
	}

	delete(r.modules, pluginID)
	delete(r.hooks, pluginID)
	delete(r.errs, pluginID)
	r.state[pluginID] = StatusDeleted
	return nil
}

// Reload drops every plugin-sourced registry entry and re-runs discovery
// from scratch.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	r.specs = make(map[string]*NodeSpec)
	r.executors = make(map[string]Executor)
	r.owner = make(map[string]string)
	r.owned = make(map[string][]string)
	r.everKnownType = make(map[string]string)
	r.state = make(map[string]PluginStatus)
	r.errs = make(map[string]string)
	r.hooks = make(map[string]Hooks)
	r.mu.Unlock()

	return r.Discover(ctx)
}

// ActivateProject activates every plugin currently known under project,
// composing from Activate.
func (r *Registry) ActivateProject(ctx context.Context, project string) error {
	for _, id := range r.pluginIDsInProject(project) {
		if err := r.Activate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DeactivateProject deactivates every plugin currently known under project,
// composing from Deactivate.
func (r *Registry) DeactivateProject(ctx context.Context, project string) error {
	for _, id := range r.pluginIDsInProject(project) {
		if err := r.Deactivate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) pluginIDsInProject(project string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := project + "/"
	seen := make(map[string]bool)
	for id := range r.state {
		if strings.HasPrefix(id, prefix) {
			seen[id] = true
		}
	}
	for id := range r.modules {
		if strings.HasPrefix(id, prefix) {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// runHook invokes whichever hook pick selects for pluginID, if non-nil.
// Hook errors are logged and suppressed: the state transition always takes
// effect regardless of hook outcome. Caller must hold r.mu.
func (r *Registry) runHook(ctx context.Context, pluginID string, pick func(Hooks) func(context.Context) error) {
	h, ok := r.hooks[pluginID]
	if !ok {
		return
	}
	fn := pick(h)
	if fn == nil {
		return
	}
	if err := fn(ctx); err != nil {
		ctxlog.FromContext(ctx).Warn("plugin hook failed", "plugin", pluginID, "error", err)
	}
}
