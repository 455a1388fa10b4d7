package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/membrane/internal/clock"
	"github.com/smallbiznis/membrane/internal/config"
	"github.com/smallbiznis/membrane/internal/event"
	"github.com/smallbiznis/membrane/internal/logger"
	"github.com/smallbiznis/membrane/internal/migration"
	"github.com/smallbiznis/membrane/internal/organization"
	"github.com/smallbiznis/membrane/internal/providers/email"
	"github.com/smallbiznis/membrane/internal/role"
	"github.com/smallbiznis/membrane/internal/seed"
	"github.com/smallbiznis/membrane/internal/server"
	"github.com/smallbiznis/membrane/internal/token"
	"github.com/smallbiznis/membrane/internal/user"
	"github.com/smallbiznis/membrane/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		role.Module,
		token.Module,
		event.Module,
		user.Module,
		organization.Module,
		email.Module,
		migration.Module,
		seed.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
