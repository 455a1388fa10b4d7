// Package server exposes the organization action API over HTTP. The
// fronting auth proxy authenticates requests and injects the acting
// user; this surface only adapts transport to the domain services.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/membrane/internal/config"
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	organizationSvc organizationdomain.Service
}

type ServerParam struct {
	fx.In

	Cfg             config.Config
	Log             *zap.Logger
	DB              *gorm.DB
	OrganizationSvc organizationdomain.Service
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg:             p.Cfg,
		log:             p.Log,
		db:              p.DB,
		organizationSvc: p.OrganizationSvc,
	}
}

func registerGin(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(ErrorHandlingMiddleware())
	return engine
}

// RegisterRoutes mounts the API.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	v1.Use(s.RequireUser())

	v1.POST("/organizations", s.CreateOrganization)
	v1.GET("/organizations/:id", s.GetOrganization)
	v1.DELETE("/organizations/:id", s.DeleteOrganization)

	v1.GET("/organizations/:id/members", s.ListMembers)
	v1.POST("/organizations/:id/members", s.AddMember)
	v1.DELETE("/organizations/:id/members/:userId", s.RemoveMember)
	v1.PATCH("/organizations/:id/members/:userId", s.ChangeRole)
	v1.POST("/organizations/:id/transfer-ownership", s.TransferOwnership)

	v1.GET("/organizations/:id/invitations", s.ListInvitations)
	v1.POST("/organizations/:id/invitations", s.SendInvite)
	v1.POST("/invitations/:inviteId/resend", s.ResendInvite)
	v1.POST("/invitations/accept", s.AcceptInvite)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine, server *Server) {
	server.RegisterRoutes(engine)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}

// Module wires the HTTP surface.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)
