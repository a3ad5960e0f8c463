// Package api provides the HTTP API server of the bridge. It wires the gin
// engine, middleware and routes, and applies configuration changes at runtime.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	internalHandlers "github.com/router-for-me/claudebridge/internal/api/handlers"
	"github.com/router-for-me/claudebridge/internal/api/middleware"
	"github.com/router-for-me/claudebridge/internal/config"
	apperrors "github.com/router-for-me/claudebridge/internal/errors"
	"github.com/router-for-me/claudebridge/internal/logging"
	"github.com/router-for-me/claudebridge/sdk/api/handlers"
	"github.com/router-for-me/claudebridge/sdk/api/handlers/claude"
	log "github.com/sirupsen/logrus"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "claudebridge"

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	engineConfigurator func(*gin.Engine)
	routerConfigurator func(*gin.Engine, *handlers.BaseAPIHandler, *config.Config)
	rootMessagesAlias  bool
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator allows callers to mutate the Gin engine prior to middleware setup.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// WithRouterConfigurator appends a callback after default routes are registered.
func WithRouterConfigurator(fn func(*gin.Engine, *handlers.BaseAPIHandler, *config.Config)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.routerConfigurator = fn
	}
}

// WithRootMessagesAlias also serves the messages endpoints without the /v1
// prefix, for clients configured with a bare base URL.
func WithRootMessagesAlias() ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.rootMessagesAlias = true
	}
}

// Reloadable is implemented by executors that rebuild state on config change.
type Reloadable interface {
	Reload(cfg *config.Config) error
}

// Server represents the main API server.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	handlers *handlers.BaseAPIHandler
	cfg      *config.Holder
	options  *serverOptionConfig
}

// NewServer creates and initializes a new API server.
func NewServer(cfg *config.Holder, exec handlers.Executor, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{}
	for i := range opts {
		opts[i](optionState)
	}
	if cfg == nil {
		cfg = config.NewHolder(config.Default())
	}
	current := cfg.Load()

	if !current.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}

	middleware.SetMetricsEnabled(current.MetricsEnabled())
	middleware.RegisterMetrics()

	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(middleware.PrometheusMiddleware())
	engine.Use(middleware.RequestDecompressionMiddleware())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}

	s := &Server{
		engine:   engine,
		handlers: handlers.NewBaseAPIHandlers(cfg, exec),
		cfg:      cfg,
		options:  optionState,
	}
	s.setupRoutes()
	if optionState.routerConfigurator != nil {
		optionState.routerConfigurator(engine, s.handlers, current)
	}

	s.server = &http.Server{
		Addr:              current.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s
}

// Engine exposes the gin engine, mainly for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) setupRoutes() {
	claudeHandlers := claude.NewClaudeCodeAPIHandler(s.handlers)
	translatorHandler := internalHandlers.NewTranslatorHandler(nil)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/messages", claudeHandlers.ClaudeMessages)
		v1.POST("/messages/count_tokens", claudeHandlers.ClaudeCountTokens)

		v1.GET("/translations", translatorHandler.GetTranslationsMatrix)
		v1.GET("/translations/check", translatorHandler.CheckTranslation)
		v1.POST("/translations/validate", translatorHandler.ValidatePayload)
	}

	if s.options.rootMessagesAlias {
		s.engine.POST("/messages", claudeHandlers.ClaudeMessages)
		s.engine.POST("/messages/count_tokens", claudeHandlers.ClaudeCountTokens)
	}

	s.engine.GET("/health", s.health)
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", middleware.MetricsHandler())

	s.engine.NoRoute(notFound)
	s.engine.NoMethod(notFound)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
}

// notFound answers unknown routes with a Claude error envelope.
func notFound(c *gin.Context) {
	appErr := apperrors.NotFound(c.Request.Method, c.Request.URL.Path)
	c.Data(appErr.StatusCode(), "application/json", appErr.ClaudeEnvelope())
}

// Start begins listening for and serving HTTP requests. It blocks until the
// server stops.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}

	log.Infof("Starting API server on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %v", errServe)
	}
	return nil
}

// Stop gracefully shuts down the API server without interrupting any
// active connections.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	log.Debug("API server stopped")
	return nil
}

// UpdateConfig publishes cfg to the handlers and applies the settings that can
// change without a restart. A changed listen address only takes effect after
// restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if s == nil || cfg == nil {
		return
	}
	previous := s.cfg.Load()
	s.cfg.Store(cfg)

	middleware.SetMetricsEnabled(cfg.MetricsEnabled())
	if cfg.Debug {
		logging.SetLogLevel("debug")
	} else {
		logging.SetLogLevel(cfg.LogLevel)
	}
	if previous.LoggingToFile != cfg.LoggingToFile || previous.LogDir != cfg.LogDir {
		if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
			log.Errorf("failed to reconfigure log output: %v", err)
		}
	}
	if r, ok := s.handlers.Executor.(Reloadable); ok {
		if err := r.Reload(cfg); err != nil {
			log.Errorf("failed to reload executor: %v", err)
		}
	}
	if previous.Addr() != cfg.Addr() {
		log.Warnf("listen address changed from %s to %s; restart to apply", previous.Addr(), cfg.Addr())
	}
}
