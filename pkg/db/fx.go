package db

import (
	"github.com/smallbiznis/membrane/internal/config"
	"go.uber.org/fx"
)

func NewFromConfig(appCfg config.Config) (Config, error) {
	return Config{
		Type:            appCfg.DBType,
		Host:            appCfg.DBHost,
		Port:            appCfg.DBPort,
		Name:            appCfg.DBName,
		User:            appCfg.DBUser,
		Password:        appCfg.DBPassword,
		SSLMode:         appCfg.DBSSLMode,
		MaxIdleConn:     appCfg.DBMaxIdleConn,
		MaxOpenConn:     appCfg.DBMaxOpenConn,
		ConnMaxLifetime: appCfg.DBConnMaxLifetime,
		ConnMaxIdleTime: appCfg.DBConnMaxIdleTime,
	}, nil
}

// Module wires the shared database handle.
var Module = fx.Module("db",
	fx.Provide(NewFromConfig),
	fx.Provide(New),
)
