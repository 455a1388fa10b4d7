package role

import (
	"github.com/smallbiznis/membrane/internal/config"
	"go.uber.org/fx"
)

// NewFromConfig builds the hierarchy and registers any custom roles
// declared in configuration. The registry is immutable after this point.
func NewFromConfig(cfg config.Config) (*Registry, error) {
	registry := NewRegistry()
	for _, def := range cfg.CustomRoles {
		caps := make([]Capability, 0, len(def.Capabilities))
		for _, name := range def.Capabilities {
			caps = append(caps, Capability(name))
		}
		if err := registry.Register(Descriptor{
			Name:         def.Name,
			Inherits:     def.Inherits,
			Capabilities: caps,
		}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Module wires the process-wide role hierarchy.
var Module = fx.Module("role",
	fx.Provide(NewFromConfig),
)
