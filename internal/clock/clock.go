// Package clock provides an injectable time source so expiry decisions
// stay deterministic in tests.
package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock answers the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystem returns a Clock backed by the wall clock.
func NewSystem() Clock { return systemClock{} }

// Module wires the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)
