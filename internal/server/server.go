package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventhub/apiserver/config"
	"github.com/eventhub/apiserver/internal/db"
	"github.com/eventhub/apiserver/internal/handlers"
	"github.com/eventhub/apiserver/internal/metrics"
	"github.com/eventhub/apiserver/internal/mq"
	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/storage"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and the long-lived clients the
// handlers depend on.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	limiter    *handlers.IPRateLimiter
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	posterStorage, err := newStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	mqClient, err := newMQ(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	eventRepo := store.NewEventRepository(dbConn)
	bookingRepo := store.NewBookingRepository(dbConn)
	notificationRepo := store.NewNotificationRepository(dbConn)

	collector := metrics.NewCollector()

	var alertPublisher services.AlertPublisher
	if mqClient != nil {
		alertPublisher = mqClient
	}

	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService(sessionRepo, cfg.Auth.SessionTTL)
	eventService := services.NewEventService(eventRepo, alertPublisher, collector)
	bookingService := services.NewBookingService(bookingRepo, eventRepo, collector)
	posterService := services.NewPosterService(posterStorage)
	notificationService := services.NewNotificationService(notificationRepo)

	authHandler := handlers.NewAuthHandler(userService, sessionService, cfg.Auth)
	eventHandler := handlers.NewEventHandler(eventService, posterService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	userHandler := handlers.NewUserHandler(userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	publisherHandler := handlers.NewPublisherHandler(eventService, bookingService)

	authLimiter := handlers.NewIPRateLimiter(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst)

	requireAuth := authHandler.RequireAuth
	publisherOnly := authHandler.RequireRole(types.RolePublisher)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		collector.Middleware,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", collector.Handler())
	router.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, eventHandler, requireAuth, publisherOnly)
		r.With(requireAuth).Post("/{eventID}/bookings", bookingHandler.CreateBooking)
	})
	router.Route("/bookings", func(r chi.Router) {
		handlers.BookingRouter(r, bookingHandler, requireAuth)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, requireAuth)
	})
	router.Route("/notifications", func(r chi.Router) {
		handlers.NotificationRouter(r, notificationHandler, requireAuth)
	})
	router.Route("/publisher", func(r chi.Router) {
		handlers.PublisherRouter(r, publisherHandler, authHandler.PageGuard(types.RolePublisher))
	})
	router.With(authHandler.PageGuard("")).Get("/profile", userHandler.Profile)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	logger.Info("server configured",
		"port", port,
		"storage_backend", cfg.StorageBackend,
		"mq_backend", cfg.MQBackend,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         mqClient,
		limiter:    authLimiter,
	}, nil
}

// newStorage builds the configured poster storage backend, or nil when
// poster uploads are disabled.
func newStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.StorageBackend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("failed to init minio: %w", err)
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("failed to init gcs: %w", err)
		}
		backend = client
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	s := storage.NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure poster bucket: %w", err)
	}
	return s, nil
}

// newMQ builds the configured message broker client, or nil when alert
// publishing is disabled.
func newMQ(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQBackend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("failed to init rabbitmq: %w", err)
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("failed to init pubsub: %w", err)
		}
		return mq.New(client), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown and closes held clients.
func (s *Server) Shutdown() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
