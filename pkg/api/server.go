// Package api is the HTTP edge: REST handlers, the websocket live session,
// and auth middleware.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/webcli/webcli/pkg/auth"
	"github.com/webcli/webcli/pkg/database"
	"github.com/webcli/webcli/pkg/engine"
	"github.com/webcli/webcli/pkg/events"
	"github.com/webcli/webcli/pkg/store"
	"github.com/webcli/webcli/pkg/version"
)

// Server hosts the REST and websocket surface.
type Server struct {
	echo   *echo.Echo
	store  *store.Store
	auth   *auth.Service
	engine *engine.Engine
	bus    *events.Bus
}

// NewServer wires routes over the given services. resourceDir is served read
// only under /resources for binary response artifacts.
func NewServer(st *store.Store, authService *auth.Service, eng *engine.Engine, bus *events.Bus, resourceDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		store:  st,
		auth:   authService,
		engine: eng,
		bus:    bus,
	}

	e.GET("/healthz", s.healthHandler)
	e.POST("/api/login", s.loginHandler)
	e.Static("/resources", resourceDir)

	api := e.Group("/api", s.requireUser)
	api.GET("/threads", s.listThreadsHandler)
	api.POST("/threads", s.createThreadHandler)
	api.GET("/threads/:id", s.getThreadHandler)
	api.PATCH("/threads/:id", s.patchThreadHandler)
	api.DELETE("/threads/:id", s.deleteThreadHandler)
	api.POST("/threads/:id/actions", s.createThreadActionHandler)
	api.POST("/threads/:id/actions/:action_id", s.appendActionHandler)
	api.PATCH("/threads/:id/actions/:action_id", s.patchThreadActionHandler)
	api.DELETE("/threads/:id/actions/:action_id", s.removeActionHandler)
	api.PATCH("/actions/:id", s.patchActionHandler)
	api.GET("/ws", s.wsHandler)

	return s
}

// Start listens on addr and blocks until shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// healthHandler handles GET /healthz.
func (s *Server) healthHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.store.DB())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"database": dbHealth,
			"version":  version.Full(),
			"error":    err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": dbHealth,
		"version":  version.Full(),
	})
}
