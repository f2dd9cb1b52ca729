package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/andeslabs/cryptoqr/backend/internal/api/http"
	"github.com/andeslabs/cryptoqr/backend/internal/api/middleware"
	"github.com/andeslabs/cryptoqr/backend/internal/config"
	infraconfig "github.com/andeslabs/cryptoqr/backend/internal/infrastructure/config"
	"github.com/andeslabs/cryptoqr/backend/internal/infrastructure/monitoring"
	"github.com/andeslabs/cryptoqr/backend/internal/logging"
	"github.com/andeslabs/cryptoqr/backend/internal/providers/qrdir"
	"github.com/andeslabs/cryptoqr/backend/internal/roots"
	"github.com/andeslabs/cryptoqr/backend/internal/security"
	"github.com/andeslabs/cryptoqr/backend/internal/service"
	"github.com/andeslabs/cryptoqr/backend/internal/ws"
)

// Config contains server construction inputs.
type Config struct {
	App *infraconfig.Config

	// CommandLineDir is the optional startup-argument seed, read once.
	CommandLineDir string

	// ConfigFile is the optional TOML file with the whitelist and blocked
	// patterns, watched for changes.
	ConfigFile string
}

// Server wires the directory subsystem behind its HTTP surface.
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	provider *config.Provider
	manager  *roots.Manager
	registry *service.Registry
	metrics  *monitoring.Metrics
	watcher  *infraconfig.Watcher
	log      *logging.Logger
}

// NewServer assembles the full service.
func NewServer(cfg Config) (*Server, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.App.Logging.Level,
		Development: cfg.App.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	provider := config.New(
		config.WithEnvironmentSeed(cfg.App.QR.Directory),
		config.WithCommandLineSeed(cfg.CommandLineDir),
		config.WithMetrics(metrics),
		config.WithLogger(log.Named("config")),
	)

	// Optional file layer: whitelist, blocked patterns, policy override.
	policy := cfg.App.Security.Policy
	var allowedDirs, blockedPatterns []string
	if cfg.ConfigFile != "" {
		if fc, err := infraconfig.LoadFile(cfg.ConfigFile); err == nil {
			allowedDirs = fc.AllowedDirectories
			blockedPatterns = fc.BlockedPatterns
			if fc.Policy != "" {
				policy = fc.Policy
			}
		} else {
			log.Warn("config file not loaded", zap.Error(err))
		}
	}
	blockedPatterns = append(blockedPatterns, cfg.App.Security.BlockedPatterns...)

	manager := roots.NewManager(provider,
		roots.WithMetrics(metrics),
		roots.WithLogger(log.Named("roots")),
	)
	if err := manager.SetSecurityValidator(policy, allowedDirs,
		securityOptions(cfg.App, blockedPatterns, metrics, log)...,
	); err != nil {
		return nil, err
	}

	registry := service.NewRegistry()
	if err := registry.Register(qrdir.NewProvider(manager)); err != nil {
		return nil, err
	}

	wsHandler := ws.NewHandler(metrics, log.Named("ws"))
	provider.Subscribe(wsHandler.BroadcastEvent)

	if !cfg.App.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.App.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.App.RateLimit.RequestsPerSecond,
			Burst:             cfg.App.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(manager, registry, metrics, log.Named("http"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	api := router.Group("/api")
	{
		api.POST("/roots/changed", handlers.RootsChanged)
		api.GET("/roots", handlers.GetRoots)
		api.POST("/directory/validate", handlers.ValidateDirectory)
		api.PUT("/directory", handlers.SetDirectory)
		api.GET("/directory/info", handlers.DirectoryInfo)
		api.GET("/directories/allowed", handlers.ListAllowed)
		api.GET("/security/audit", handlers.AuditLog)
		api.GET("/services", handlers.ListServices)
		api.POST("/services/execute", handlers.ExecuteService)
	}

	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	s := &Server{
		router:   router,
		provider: provider,
		manager:  manager,
		registry: registry,
		metrics:  metrics,
		log:      log,
	}

	if cfg.ConfigFile != "" {
		watcher, err := infraconfig.NewWatcher(cfg.ConfigFile, log.Named("watcher"))
		if err != nil {
			log.Warn("config watcher unavailable", zap.Error(err))
		} else {
			watcher.Start(s.applyFileConfig)
			s.watcher = watcher
		}
	}

	return s, nil
}

// applyFileConfig pushes a reloaded whitelist into the live provider and
// validator.
func (s *Server) applyFileConfig(fc *infraconfig.FileConfig) {
	s.provider.UpdateAllowedDirectories(fc.AllowedDirectories)
	if v := s.manager.Validator(); v != nil {
		v.SetAllowedRoots(fc.AllowedDirectories)
	}
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	s.log.Info("starting server", zap.String("addr", addr))
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

// Close shuts the server down gracefully.
func (s *Server) Close() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.log.Sync()

	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func securityOptions(app *infraconfig.Config, blockedPatterns []string, metrics *monitoring.Metrics, log *logging.Logger) []security.Option {
	return []security.Option{
		security.WithMinInterval(time.Duration(app.Security.MinIntervalMS) * time.Millisecond),
		security.WithAuditCapacity(app.Security.AuditCapacity),
		security.WithBlockedPatterns(blockedPatterns),
		security.WithMetrics(metrics),
		security.WithLogger(log.Named("security")),
	}
}
