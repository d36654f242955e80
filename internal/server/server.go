// Package server assembles the launcher daemon: plugin catalog, search
// aggregator, view session manager, host coordination, and the HTTP/WS API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/spotlaunch/launcherd/internal/api/http"
	"github.com/spotlaunch/launcherd/internal/api/middleware"
	"github.com/spotlaunch/launcherd/internal/config"
	"github.com/spotlaunch/launcherd/internal/events"
	"github.com/spotlaunch/launcherd/internal/host"
	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/monitoring"
	"github.com/spotlaunch/launcherd/internal/plugin"
	"github.com/spotlaunch/launcherd/internal/plugin/builtin"
	"github.com/spotlaunch/launcherd/internal/sandbox"
	"github.com/spotlaunch/launcherd/internal/search"
	"github.com/spotlaunch/launcherd/internal/store"
	"github.com/spotlaunch/launcherd/internal/view"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	registry    *plugin.Registry
	aggregator  *search.Aggregator
	viewManager *view.Manager
	hub         *events.Hub
	pool        *sandbox.Pool
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
}

// Options tweaks construction for embedding and tests.
type Options struct {
	// Window receives geometry updates; nil means headless.
	Window host.WindowControl

	// SurfaceFactory overrides the surface backend; nil means headless
	// surfaces.
	SurfaceFactory view.Factory
}

// New assembles a server from configuration.
func New(cfg *config.Config, opts Options) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	logger.Info("initializing launcherd",
		zap.String("port", cfg.Server.Port),
		zap.String("plugins_root", cfg.Plugins.Root),
	)

	metrics := monitoring.NewMetrics()

	stores, err := store.NewFileProvider(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	sandboxCfg := sandbox.Config{Timeout: cfg.Plugins.ScriptTimeout, EnableConsole: true}
	loader := plugin.NewLoader(sandboxCfg, stores, logger)
	registry := plugin.NewRegistry(cfg.Plugins.Root, loader, logger)
	registry.TrackLoads(metrics.PluginLoads)
	if err := registry.RegisterNative(builtin.NewApplications()); err != nil {
		return nil, fmt.Errorf("register builtin plugins: %w", err)
	}

	aggregator := search.NewAggregator(registry, search.Options{
		CorpusTimeout: cfg.Plugins.CorpusTimeout,
		BrowseLimit:   cfg.Search.BrowseLimit,
	}, logger)

	hub := events.NewHub(logger)
	hub.TrackConnections(metrics.WSConnections)

	geom := view.Geometry{
		WindowWidth:   cfg.Window.Width,
		SearchHeight:  cfg.Window.SearchHeight,
		ViewHeight:    cfg.Window.ViewHeight,
		ToolbarHeight: cfg.Window.ToolbarHeight,
	}
	coordinator := host.NewCoordinator(opts.Window, hub, geom, logger)

	pool, err := sandbox.NewPool(sandboxCfg, 2, logger)
	if err != nil {
		return nil, fmt.Errorf("init sandbox pool: %w", err)
	}
	factory := opts.SurfaceFactory
	if factory == nil {
		factory = view.NewHeadlessFactory(pool)
	}
	viewManager := view.NewManager(registry, factory, coordinator, geom, logger)
	coordinator.Attach(viewManager)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(registry, aggregator, viewManager, coordinator, stores, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.GET("/plugins", handlers.ListPlugins)
	router.GET("/plugins/:id", handlers.GetPlugin)
	router.POST("/plugins/refresh", handlers.RefreshPlugins)

	router.GET("/search", handlers.Search)
	router.GET("/search/combined", handlers.Search)
	router.GET("/search/instant", handlers.InstantSearch)
	router.GET("/search/corpus", handlers.Corpus)
	router.POST("/search/corpus/refresh", handlers.RefreshCorpus)
	router.POST("/input", handlers.Input)
	router.POST("/view/input/changed", handlers.InputChanged)
	router.POST("/view/input/submitted", handlers.InputSubmitted)

	router.GET("/view", handlers.ViewStatus)
	router.POST("/view/open", handlers.OpenView)
	router.POST("/view/close", handlers.CloseView)
	router.POST("/view/reload", handlers.ReloadView)
	router.POST("/view/devtools", handlers.OpenDevTools)
	router.POST("/view/execute", handlers.ExecuteScript)

	router.GET("/view/surfaces", handlers.ListSurfaces)
	router.POST("/view/surfaces", handlers.CreateSurface)
	router.DELETE("/view/surfaces", handlers.DestroyDefaultSurface)
	router.DELETE("/view/surfaces/:id", handlers.DestroySurface)
	router.POST("/view/surfaces/:id/url", handlers.LoadSurface)
	router.POST("/view/surfaces/:id/reload", handlers.ReloadSurface)
	router.POST("/view/surfaces/:id/devtools", handlers.SurfaceDevTools)
	router.POST("/view/surfaces/:id/execute", handlers.SurfaceExecute)
	router.PUT("/view/surfaces/:id/bounds", handlers.SetSurfaceBounds)
	router.PUT("/view/surfaces/:id/visible", handlers.SetSurfaceVisible)

	router.GET("/store/:plugin", handlers.StoreKeys)
	router.GET("/store/:plugin/:key", handlers.StoreGet)
	router.PUT("/store/:plugin/:key", handlers.StoreSet)
	router.DELETE("/store/:plugin/:key", handlers.StoreDelete)

	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		router:      router,
		registry:    registry,
		aggregator:  aggregator,
		viewManager: viewManager,
		hub:         hub,
		pool:        pool,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
	}, nil
}

// Bootstrap scans the plugin root and builds the initial corpus.
func (s *Server) Bootstrap(ctx context.Context) error {
	if err := s.registry.LoadAll(ctx); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	s.metrics.PluginsLoaded.Set(float64(len(s.registry.GetAll())))

	if err := s.aggregator.RefreshCorpus(ctx); err != nil {
		return fmt.Errorf("build corpus: %w", err)
	}
	s.metrics.CorpusItems.Set(float64(len(s.aggregator.Corpus())))
	return nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting http server", zap.String("addr", addr))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and tears everything down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.viewManager.Close()
	s.hub.Close()
	s.registry.Close()
	s.pool.Close()
	s.logger.Sync()
	return err
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
