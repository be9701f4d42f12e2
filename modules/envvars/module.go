// Package envvars provides the "core/env_vars" node: a zero-input source
// that snapshots the process environment into a single map output.
package envvars

import (
	"os"
	"strings"

	"github.com/vk/burstflow/internal/registry"
)

type Module struct{}

func (m *Module) PluginID() string { return "core/env_vars" }

func (m *Module) Register(reg *registry.PluginRegistrar) {
	reg.RegisterNode(registry.NodeSpec{
		Type:        "env_vars",
		Label:       "Environment Variables",
		Category:    "system",
		Description: "Snapshots the process environment as a string map.",
		PortsOut:    []registry.PortSpec{{Name: "all"}},
	}, onRunEnvVars)
}

// onRunEnvVars returns any, not map[string]string: a run function's output
// ports may not have a static map return type (registry.wrapRunFunc rejects
// it at registration), so the map is boxed behind the empty interface.
func onRunEnvVars() (any, error) {
	all := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			all[k] = v
		}
	}
	return all, nil
}
