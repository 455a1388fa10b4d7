package event

import "go.uber.org/fx"

// Module wires the process-wide dispatcher.
var Module = fx.Module("event",
	fx.Provide(NewDispatcher),
)
