package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/burstflow/internal/ctxlog"
)

// Discover scans root for "<project>/nodes/<plugin>/manifest.json" entries,
// merges each plugin's manifest over its project's, consults the state
// file for inactive markers, and loads every plugin whose compiled Module
// is both present and not marked inactive. A plugin whose directory exists
// but has no matching compiled Module, or whose Register call fails, is
// recorded as StatusError and does not abort its siblings.
//
// Discover is idempotent: calling it again re-scans from scratch (see
// Reload).
func (r *Registry) Discover(ctx context.Context) error {
	if r.root == "" {
		return r.loadAllActive(ctx)
	}

	logger := ctxlog.FromContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()

	diskState := readStateFile(r.statePath, logger)

	projects, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		projectDir := filepath.Join(r.root, project.Name())
		projectManifest, err := readProjectManifest(filepath.Join(projectDir, "manifest.json"))
		if err != nil {
			logger.Warn("unreadable project manifest", "project", project.Name(), "error", err)
		}

		nodesDir := filepath.Join(projectDir, "nodes")
		plugins, err := os.ReadDir(nodesDir)
		if err != nil {
			continue
		}
		for _, plugin := range plugins {
			if !plugin.IsDir() {
				continue
			}
			pluginID := project.Name() + "/" + plugin.Name()
			manifestPath := filepath.Join(nodesDir, plugin.Name(), "manifest.json")
			pluginManifest, ok, err := readPluginManifest(manifestPath)
			if !ok {
				continue // not a plugin directory
			}
			if err != nil {
				r.state[pluginID] = StatusError
				r.errs[pluginID] = err.Error()
				continue
			}
			_ = effectiveManifest(projectManifest, pluginManifest)

			if diskState[pluginID] == "inactive" {
				r.state[pluginID] = StatusInactive
				continue
			}

			r.loadOne(ctx, pluginID)
		}
	}
	return nil
}

// loadAllActive is the no-disk fallback used when the registry was
// constructed with root == "": every compiled module is loaded unless the
// in-memory state already marks it inactive or deleted (set via Activate/
// Deactivate/Delete, which still work without a disk root).
func (r *Registry) loadAllActive(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if st, ok := r.state[id]; ok && st != StatusActive {
			continue
		}
		r.loadOne(ctx, id)
	}
	return nil
}

// loadOne loads a single plugin's module, if a compiled one is registered
// for its id. Caller must hold r.mu.
func (r *Registry) loadOne(ctx context.Context, pluginID string) {
	m, ok := r.modules[pluginID]
	if !ok {
		r.state[pluginID] = StatusError
		r.errs[pluginID] = "no compiled module registered for this plugin id"
		return
	}
	if err := r.load(ctx, pluginID, m); err != nil {
		r.state[pluginID] = StatusError
		r.errs[pluginID] = err.Error()
		return
	}
	delete(r.errs, pluginID)
	r.state[pluginID] = StatusActive
}

// Plugins lists every plugin discovery has seen, sorted by id.
func (r *Registry) Plugins() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.state))
	for id := range r.state {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]PluginInfo, 0, len(ids))
	for _, id := range ids {
		types := append([]string(nil), r.owned[id]...)
		sort.Strings(types)
		out = append(out, PluginInfo{
			PluginID:  id,
			Status:    r.state[id],
			NodeTypes: types,
			Error:     r.errs[id],
		})
	}
	return out
}
