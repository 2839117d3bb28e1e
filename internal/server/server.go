package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livepoll/config"
	"livepoll/internal/handler"
	"livepoll/internal/middleware"
	"livepoll/internal/redis"
	"livepoll/internal/services"
	"livepoll/internal/transport/httpdto"
	"livepoll/internal/websocket"
	"livepoll/pkg/database"
	"livepoll/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth *handler.AuthHandler
	Poll *handler.PollHandler
	WS   *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// SetupRoutes mounts middleware and all API routes. limiter may be nil
// when rate limiting is not wired (tests).
func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.Origins()))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))
	if limiter != nil {
		s.engine.Use(middleware.RateLimitMiddleware(limiter))
	}

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	authed := middleware.AuthMiddleware(authService)

	auth := s.engine.Group("/v1/auth")
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/refresh", handlers.Auth.Refresh)
		auth.POST("/logout", authed, handlers.Auth.Logout)
		auth.POST("/logout-all", authed, handlers.Auth.LogoutAll)
		auth.GET("/session", authed, handlers.Auth.Session)
		auth.GET("/sessions", authed, handlers.Auth.Sessions)
		auth.POST("/password/forgot", handlers.Auth.PasswordForgot)
		auth.POST("/password/recover", handlers.Auth.PasswordRecover)
		auth.POST("/password/update", authed, handlers.Auth.PasswordUpdate)
	}

	polls := s.engine.Group("/v1/polls")
	{
		// Reads are public by policy; every mutation is gated.
		polls.GET("", handlers.Poll.List)
		polls.GET("/:id", handlers.Poll.Get)

		if limiter != nil {
			polls.POST("", authed, middleware.PollRateLimitMiddleware(limiter), handlers.Poll.Create)
			polls.DELETE("/:id", authed, middleware.PollRateLimitMiddleware(limiter), handlers.Poll.Delete)
			polls.PUT("/:id/vote", authed, middleware.VoteRateLimitMiddleware(limiter), handlers.Poll.CastVote)
			polls.DELETE("/:id/vote", authed, middleware.VoteRateLimitMiddleware(limiter), handlers.Poll.RetractVote)
		} else {
			polls.POST("", authed, handlers.Poll.Create)
			polls.DELETE("/:id", authed, handlers.Poll.Delete)
			polls.PUT("/:id/vote", authed, handlers.Poll.CastVote)
			polls.DELETE("/:id/vote", authed, handlers.Poll.RetractVote)
		}
	}

	if handlers.WS != nil {
		s.engine.GET("/ws", handlers.WS.Connect)
	}
}

// Start serves until SIGINT/SIGTERM, then drains connections with a
// five second grace period.
func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
