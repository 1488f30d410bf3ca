package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shoplite/apiserver/config"
	"github.com/shoplite/apiserver/internal/auth"
	"github.com/shoplite/apiserver/internal/db"
	"github.com/shoplite/apiserver/internal/events"
	"github.com/shoplite/apiserver/internal/handlers"
	"github.com/shoplite/apiserver/internal/mq"
	"github.com/shoplite/apiserver/internal/services"
	"github.com/shoplite/apiserver/internal/storage"
	"github.com/shoplite/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and shared resources. The
// database handle and broker connection are opened once here and
// reused by every request.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := mq.New(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if broker == nil {
		log.Printf("event publishing disabled: MQ_BACKEND is not set")
	}

	closeOnErr := func() {
		if broker != nil {
			_ = broker.Close()
		}
		_ = dbConn.Close()
	}

	avatarStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		closeOnErr()
		return nil, err
	}
	var avatarHandler *handlers.AvatarHandler
	if avatarStore != nil {
		if err := avatarStore.EnsureBucket(ctx); err != nil {
			closeOnErr()
			return nil, fmt.Errorf("ensure avatar bucket: %w", err)
		}
		avatarHandler = handlers.NewAvatarHandler(avatarStore)
	} else {
		log.Printf("avatars disabled: STORAGE_BACKEND is not set")
	}

	userRepo := store.NewUserRepository(dbConn)
	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	publisher := events.NewPublisher(broker, cfg.MQ.Channel)
	authService := services.NewAuthService(userRepo, hasher, tokens, publisher)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, tokens, avatarHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

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
		broker:     broker,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
