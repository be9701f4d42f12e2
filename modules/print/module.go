// Package print provides the "core/print" node: a sink that logs whatever
// value it receives and produces no outputs, useful for inspecting a
// workflow's intermediate state without wiring in a real consumer.
package print

import (
	"fmt"
	"sort"

	"github.com/vk/burstflow/internal/pluginlog"
	"github.com/vk/burstflow/internal/registry"
)

// Module implements registry.Module.
type Module struct{}

func (m *Module) PluginID() string { return "core/print" }

func (m *Module) Register(reg *registry.PluginRegistrar) {
	reg.RegisterNode(registry.NodeSpec{
		Type:        "print",
		Label:       "Print",
		Category:    "debug",
		Description: "Logs its input value and produces no outputs.",
		PortsIn:     []registry.PortSpec{{Name: "value"}},
	}, onRunPrint)
}

func onRunPrint(value any) error {
	pluginlog.Info("print node received value")

	switch v := value.(type) {
	case nil:
		fmt.Println("      (null)")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("      %s = %v\n", k, v[k])
		}
	default:
		fmt.Printf("      %v\n", v)
	}
	return nil
}
