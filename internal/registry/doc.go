// Package registry owns the authoritative mapping from node type name to
// (declarative spec, executor function). It discovers plugins from a
// two-tier directory tree on disk, merges project- and plugin-level
// manifests, applies a persisted activation state file, and exposes
// activate/deactivate/delete/reload lifecycle transitions guarded by a
// single mutex so that snapshot() never observes a torn state.
package registry
