package seed

import (
	"github.com/smallbiznis/membrane/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func runOnStartup(cfg config.Config, db *gorm.DB) error {
	if !cfg.SeedDefaultOrg {
		return nil
	}
	return EnsureDefaultOrg(db)
}

// Module seeds first-run data after migrations have applied.
var Module = fx.Module("seed",
	fx.Invoke(runOnStartup),
)
