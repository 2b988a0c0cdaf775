package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"dealerlink/internal/catalog"
	"dealerlink/internal/config"
	"dealerlink/internal/directory"
	"dealerlink/internal/ledger"
	custommiddleware "dealerlink/internal/middleware"
	"dealerlink/internal/notify"
	"dealerlink/internal/repository"
	"dealerlink/internal/service"
	"dealerlink/internal/store"
	"dealerlink/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: 100,
			Window:            time.Minute,
			KeyPrefix:         "rate_limit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	// Initialize the document store and core services
	documents := store.NewPostgresStore(db)
	notifier := notify.NewZapNotifier(logger.Named("events"))

	catalogService := catalog.NewService(documents)
	directoryService := directory.NewService(documents, userRepo, notifier)
	orderLedger := ledger.NewLedger(documents, catalogService, notifier,
		ledger.StockPolicy(cfg.Order.StockPolicy), logger.Named("ledger"))

	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(catalogService, directoryService, logger)
	orderHandler := transport.NewOrderHandler(orderLedger, directoryService, logger)
	connectionHandler := transport.NewConnectionHandler(directoryService, logger)

	// Create middlewares gating protected routes
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	requireDealer := custommiddleware.RequireDealer(logger)
	requireRetailer := custommiddleware.RequireRetailer(logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware, requireDealer, requireRetailer)
	orderHandler.RegisterRoutes(router, authMiddleware, requireDealer, requireRetailer)
	connectionHandler.RegisterRoutes(router, authMiddleware, requireRetailer)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
