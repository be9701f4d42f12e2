package app

import (
	"github.com/vk/burstflow/internal/registry"
	"github.com/vk/burstflow/modules/envvars"
	"github.com/vk/burstflow/modules/httprequest"
	"github.com/vk/burstflow/modules/print"
	"github.com/vk/burstflow/modules/sorting"
)

// coreModules is the definitive list of modules compiled into the
// burstflowctl binary. With a PluginsRoot configured, Discover loads only
// the modules of this set whose plugin directory exists on disk.
var coreModules = []registry.Module{
	&print.Module{},
	&envvars.Module{},
	&httprequest.Module{},
	&sorting.Module{},
}
