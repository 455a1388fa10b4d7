package migration

import (
	"github.com/smallbiznis/membrane/internal/config"
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
	orgevent "github.com/smallbiznis/membrane/internal/organization/event"
	userdomain "github.com/smallbiznis/membrane/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func runOnStartup(cfg config.Config, conn *gorm.DB, log *zap.Logger) error {
	// The embedded SQL migrations are written for postgres. Other
	// dialects build the schema from the models; the partial unique
	// indexes stay postgres-only, so those invariants rest on the
	// service checks there.
	if cfg.DBType != "postgres" {
		log.Info("migrating schema from models", zap.String("db_type", cfg.DBType))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// AutoMigrate builds the schema from the gorm models. Tests and
// non-postgres deployments share this path.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&userdomain.User{},
		&organizationdomain.Organization{},
		&organizationdomain.Membership{},
		&organizationdomain.Invitation{},
		&orgevent.OrganizationEvent{},
	)
}

// Module applies schema migrations during application startup.
var Module = fx.Module("migration",
	fx.Invoke(runOnStartup),
)
