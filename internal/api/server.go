package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"emagsync/internal/api/handlers"
	"emagsync/internal/api/middleware"
	"emagsync/internal/config"
	"emagsync/internal/logger"
	"emagsync/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Catalog is the category store behind the mapping and category routes.
type Catalog interface {
	handlers.MappingStore
	handlers.CategoryStore
}

// Runner performs the read-only catalog workflows synchronously.
type Runner interface {
	handlers.Browser
	handlers.Proposer
}

// Services are the backends the HTTP handlers call.
type Services struct {
	Runs      handlers.RunStore
	Enqueuer  handlers.Enqueuer
	Catalog   Catalog
	Schedules handlers.ScheduleStore
	Trigger   handlers.Trigger
	Runner    Runner
	DB        handlers.Pinger
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, svc Services) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	// Initialize handlers
	runHandler := handlers.NewRunHandler(svc.Runs, svc.Enqueuer, logger)
	productHandler := handlers.NewProductHandler(svc.Runner, cfg.EmagLocale, logger)
	mappingHandler := handlers.NewMappingHandler(svc.Catalog, svc.Runner, logger)
	categoryHandler := handlers.NewCategoryHandler(svc.Catalog, logger)
	scheduleHandler := handlers.NewScheduleHandler(svc.Schedules, svc.Trigger, logger)
	healthHandler := handlers.NewHealthHandler(svc.DB)

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.BasicAuth(cfg.APIUsername, cfg.APIPassword))
	{
		v1.GET("/health", healthHandler.Check)
		v1.GET("/metrics", gin.WrapH(metrics.Handler()))

		// Runs
		runs := v1.Group("/runs")
		{
			runs.POST("", runHandler.Create)
			runs.GET("", runHandler.List)
			runs.GET("/:id", runHandler.Get)
			runs.GET("/:id/failures.xlsx", runHandler.FailuresReport)
		}

		// Products
		products := v1.Group("/products")
		{
			products.GET("/fitness1", productHandler.Supplier)
			products.GET("/emag", productHandler.Marketplace)
		}

		// Category mappings
		mappings := v1.Group("/mappings")
		{
			mappings.GET("", mappingHandler.List)
			mappings.POST("", mappingHandler.Create)
			mappings.PATCH("", mappingHandler.Update)
			mappings.DELETE("/:id", mappingHandler.Delete)
			mappings.POST("/rebuild", mappingHandler.Rebuild)
		}

		// Allowed categories
		categories := v1.Group("/categories")
		{
			categories.GET("", categoryHandler.List)
			categories.POST("/seed", categoryHandler.Seed)
		}

		// Schedule
		schedule := v1.Group("/schedule")
		{
			schedule.GET("", scheduleHandler.Get)
			schedule.POST("", scheduleHandler.Save)
			schedule.DELETE("", scheduleHandler.Delete)
			schedule.POST("/trigger", scheduleHandler.Run)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// Router exposes the routes for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
