package registry

import "context"

// PortSpec describes one named, typed port on a node type.
type PortSpec struct {
	Name string
	// Type is a user-defined tag such as "ARRAY", "NUMBER", "STRING",
	// "FUNCTION", or a domain extension. It carries no enforced semantics
	// beyond UI coloring and the validator's type-compatibility warning.
	Type     string
	Required bool
	// Default is the value used when a port is neither fed by an edge nor
	// present in params. A nil Default with Required false means "absent".
	Default    any
	HasDefault bool
}

// NodeSpec is the declarative shape of a registered node type: its ports
// and display metadata. A spec with a nil Executor is container-only,
// meaningful only to the executor's control logic (e.g. loop_group).
type NodeSpec struct {
	Type        string
	Label       string
	Category    string
	Description string
	Doc         string
	PortsIn     []PortSpec
	PortsOut    []PortSpec
}

// Executor is the uniform shape every plugin's run function is wrapped
// into at registration time: given merged params and resolved inputs (one
// entry per ports_in name, already unstacked per the fan-in rule), produce
// a mapping from ports_out name to value.
type Executor func(ctx context.Context, params map[string]any, inputs map[string]any) (map[string]any, error)

// Hooks are optional per-plugin lifecycle callbacks. Any may be nil.
type Hooks struct {
	OnActivate   func(ctx context.Context) error
	OnDeactivate func(ctx context.Context) error
	OnUninstall  func(ctx context.Context) error
}

// Snapshot is an immutable view of the registry taken at one instant,
// suitable for handing to the validator and executor. Mutating the maps
// returned here has no effect on the live registry.
type Snapshot struct {
	Specs     map[string]*NodeSpec
	Executors map[string]Executor
	// InactiveTypes maps a node type that some plugin declares to that
	// plugin's id, for every type whose owning plugin is currently
	// Inactive (not Deleted). The executor uses this to tell "inactive
	// plugin" apart from "unknown type" when a workflow references a type
	// missing from Specs.
	InactiveTypes map[string]string
}

// Lookup returns the spec and executor for a node type, and whether it was
// found. A container-only type is found but has a nil Executor.
func (s Snapshot) Lookup(nodeType string) (*NodeSpec, Executor, bool) {
	spec, ok := s.Specs[nodeType]
	if !ok {
		return nil, nil, false
	}
	return spec, s.Executors[nodeType], true
}

// PluginStatus is the lifecycle state of a plugin.
type PluginStatus string

const (
	StatusActive   PluginStatus = "active"
	StatusInactive PluginStatus = "inactive"
	StatusDeleted  PluginStatus = "deleted"
	// StatusError means discovery found the plugin on disk but its module
	// could not be loaded; node types from it are not registered.
	StatusError PluginStatus = "error"
)

// PluginInfo summarizes one discovered plugin for introspection / listing.
type PluginInfo struct {
	PluginID  string
	Status    PluginStatus
	NodeTypes []string
	Error     string
}
