// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and routes.
// It decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - Which database and cache backends the process talks to
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → repository.Store (sqlite.DB or postgres.DB, chosen by DSN)
//	  → cache.Store      (RedisStore or MemoryStore, chosen by REDIS_ADDR)
//	  → AuthService, ArticleService
//	  → AuthHandler, ArticleHandler
//	  → chi routes
//
// This is the "composition root" pattern: every dependency is built in New,
// nowhere else.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/articles-api/internal/auth"
	"github.com/sakif/articles-api/internal/cache"
	"github.com/sakif/articles-api/internal/config"
	"github.com/sakif/articles-api/internal/handler"
	"github.com/sakif/articles-api/internal/middleware"
	"github.com/sakif/articles-api/internal/repository"
	pgRepo "github.com/sakif/articles-api/internal/repository/postgres"
	sqliteRepo "github.com/sakif/articles-api/internal/repository/sqlite"
	"github.com/sakif/articles-api/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	healthTimeout   = 2 * time.Second
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database and cache connections. Close releases both;
// Start calls it on the way out.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	cache  cache.Store
}

// New opens the backends named in cfg and wires every route.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cacheStore, err := openCache(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		cache:  cacheStore,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore picks Postgres for a postgres:// DSN and SQLite for anything else.
func openStore(ctx context.Context, dsn string) (repository.Store, error) {
	if pgRepo.IsDSN(dsn) {
		db, err := pgRepo.ConnectAndMigrate(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	if dsn != ":memory:" {
		// os.MkdirAll is `mkdir -p`: the data directory may not exist yet.
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// openCache connects to Redis when an address is configured and falls back
// to an in-process store otherwise. A configured Redis that cannot be
// reached at startup is an error.
func openCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(), nil
	}
	redisStore, err := cache.NewRedisStore(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	return redisStore, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /auth/register   → create account, returns {"access_token"}
//	POST   /auth/login      → returns {"access_token"}
//	POST   /auth/logout     → clears the token cookie
//	GET    /auth/me         → current user              [auth]
//	GET    /articles        → paginated, filtered list
//	GET    /articles/{id}   → single article
//	POST   /articles        → create                    [auth]
//	PATCH  /articles/{id}   → partial update, owner only [auth]
//	DELETE /articles/{id}   → delete, owner only         [auth]
//	GET    /healthz         → database and cache status
//	GET    /metrics         → Prometheus exposition
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (logged by Logger)
// 2. RealIP: extracts the client IP from proxy headers
// 3. Recoverer: turns a panic into a 500 instead of a crash
// 4. Metrics and Logger: observe the final status of every request
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	// The handler never touches the database directly and the service never
	// touches HTTP.
	authService := service.NewAuthService(s.store, tokens, passwords, s.logger)
	articleService := service.NewArticleService(s.store, cache.New(s.cache, s.logger), s.logger)

	authHandler := handler.NewAuthHandler(authService, s.config.TokenTTL, s.logger)
	articleHandler := handler.NewArticleHandler(articleService, s.logger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)
	})

	s.router.Route("/articles", func(r chi.Router) {
		r.Get("/", articleHandler.HandleList)
		r.Get("/{id}", articleHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/", articleHandler.HandleCreate)
			r.Patch("/{id}", articleHandler.HandleUpdate)
			r.Delete("/{id}", articleHandler.HandleDelete)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// handleHealth reports "ok", "degraded" (cache unreachable, requests still
// served from the database) or "down" (database unreachable, 503).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Cache: "ok"}
	status := http.StatusOK

	if err := s.cache.Ping(ctx); err != nil {
		s.logger.Warn("health: cache unreachable", slog.String("error", err.Error()))
		resp.Cache = "unreachable"
		resp.Status = "degraded"
	}
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health: database unreachable", slog.String("error", err.Error()))
		resp.Database = "unreachable"
		resp.Status = "down"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database and cache connections
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", s.config.ListenAddr),
			slog.Bool("postgres", pgRepo.IsDSN(s.config.DatabaseDSN)),
			slog.Bool("redis", s.config.RedisAddr != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database and cache connections.
func (s *Server) Close() error {
	return errors.Join(s.cache.Close(), s.store.Close())
}
