package app

import "context"

// ActivatePlugin brings a plugin back into the active set.
func (a *App) ActivatePlugin(ctx context.Context, pluginID string) error {
	return a.registry.Activate(ctx, pluginID)
}

// DeactivatePlugin removes a plugin's node types from the live registry
// without forgetting that the plugin exists.
func (a *App) DeactivatePlugin(ctx context.Context, pluginID string) error {
	return a.registry.Deactivate(ctx, pluginID)
}

// DeletePlugin permanently removes a plugin; it must be inactive first.
func (a *App) DeletePlugin(ctx context.Context, pluginID string) error {
	return a.registry.Delete(ctx, pluginID)
}
