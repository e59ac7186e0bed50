package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"pricebook/internal/config"
	"pricebook/internal/events"
	custommiddleware "pricebook/internal/middleware"
	"pricebook/internal/repository"
	"pricebook/internal/service"
	"pricebook/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

// NewServer wires repositories, the catalog facade and the HTTP router.
// redisClient may be nil; event publishing then falls back to the log sink
// and rate limiting is disabled.
func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Domain events go to the log, and to redis pub/sub when available
	var sink events.Sink = events.NewLogSink(logger)
	if redisClient != nil {
		sink = events.FanoutSink{sink, events.NewRedisSink(redisClient, cfg.Catalog.EventChannelPrefix)}
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db, sink, cfg.Catalog.BundleMaxDepth)
	listingRepo := repository.NewListingRepository(db, sink)
	collectionRepo := repository.NewCollectionRepository(db, cfg.Catalog.MaxCollectionDepth)

	// Initialize services
	catalogService := service.NewCatalogService(productRepo, listingRepo, collectionRepo, nil)

	// Initialize handlers
	catalogHandler := transport.NewCatalogHandler(catalogService, productRepo, collectionRepo, logger)

	// Register routes
	catalogHandler.RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
