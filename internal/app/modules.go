package app

import (
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/modules/actions"
	"github.com/specialistvlad/nodeflow/modules/converters"
	"github.com/specialistvlad/nodeflow/modules/data"
	"github.com/specialistvlad/nodeflow/modules/env_vars"
	"github.com/specialistvlad/nodeflow/modules/events"
	"github.com/specialistvlad/nodeflow/modules/flow"
	"github.com/specialistvlad/nodeflow/modules/http_request"
	"github.com/specialistvlad/nodeflow/modules/logic"
	"github.com/specialistvlad/nodeflow/modules/variables"
)

// coreModules is the definitive list of all node modules that are compiled
// into the nodeflow binary.
var coreModules = []registry.Module{
	&events.Module{},
	&flow.Module{},
	&data.Module{},
	&variables.Module{},
	&logic.Module{},
	&actions.Module{},
	&converters.Module{},
	&env_vars.Module{},
	&http_request.Module{},
}
