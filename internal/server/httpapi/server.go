// Package httpapi is the HTTP transport for accountkeeper: routing, bearer
// extraction, and mapping of core failures onto status codes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avasiliev/accountkeeper/internal/logging"
	"github.com/avasiliev/accountkeeper/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

// Server runs the gin engine behind an http.Server with graceful shutdown.
type Server struct {
	address string
	router  *gin.Engine
	logger  logging.Logger
}

func NewServer(address string, handler *Handler, gate *auth.Gate, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(logger))

	setupRoutes(router, handler, gate)

	return &Server{
		address: address,
		router:  router,
		logger:  logger.With("module", "http_server"),
	}
}

func setupRoutes(router *gin.Engine, h *Handler, gate *auth.Gate) {
	api := router.Group(apiPrefix)

	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)

	protected := api.Group("/users", authRequired(gate))
	protected.GET("", h.listUsers)
	protected.POST("", h.createUser)
	protected.GET("/me", h.readMe)
	protected.PUT("/me", h.updateMe)
	protected.GET("/:id", h.readUser)
	protected.PUT("/:id", h.updateUser)
	protected.DELETE("/:id", h.deleteUser)
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts the listener down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.router}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
