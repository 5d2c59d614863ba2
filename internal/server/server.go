// Package server wires the store, services, handlers and routes together and
// runs the HTTP server with graceful shutdown.
//
// This is the composition root: every dependency is created here and handed
// down, so no other package constructs its own collaborators.
//
//	config → store (SQLite or Postgres) → IdentityService → AuthService → handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/identity-hub/internal/auth"
	"github.com/sakif/identity-hub/internal/config"
	"github.com/sakif/identity-hub/internal/handler"
	"github.com/sakif/identity-hub/internal/middleware"
	"github.com/sakif/identity-hub/internal/provider"
	"github.com/sakif/identity-hub/internal/repository"
	pgRepo "github.com/sakif/identity-hub/internal/repository/postgres"
	sqliteRepo "github.com/sakif/identity-hub/internal/repository/sqlite"
	"github.com/sakif/identity-hub/internal/service"
)

// Store is what the server needs from a storage backend.
type Store interface {
	repository.Store
	handler.Pinger
	io.Closer
}

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  Store

	providers []handler.OAuthProvider
}

// Option customizes New.
type Option func(*Server)

// WithProviders replaces the providers built from config. Used by tests to
// point the OAuth flow at a fake provider.
func WithProviders(providers ...handler.OAuthProvider) Option {
	return func(s *Server) { s.providers = providers }
}

// New opens the store, runs migrations and registers all routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// openStore picks PostgreSQL when DATABASE_URL is set and SQLite otherwise.
func openStore(ctx context.Context, cfg config.Config) (Store, error) {
	if cfg.UsePostgres() {
		db, err := pgRepo.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	}

	if cfg.DBPath != ":memory:" {
		// mkdir -p for the database directory
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET  /                         → app status
//	GET  /api/public/ping          → store liveness
//	GET  /auth/{provider}/login    → redirect to Google/GitHub
//	GET  /auth/{provider}/callback → finish login, set session cookie
//	POST /auth/logout              → clear session cookie
//	GET  /api/me                   → current user (optional auth)
//	POST /api/profile              → edit display name / bio (auth required)
//
// MIDDLEWARE ORDER: RequestID → RealIP → Logger → Recoverer. The logger sits
// outside Recoverer so recovered panics are still logged with their 500.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	emails := provider.NewGitHubEmailClient(s.config.GitHubAPIURL, s.config.GitHubEmailTimeout)
	normalizer := provider.NewNormalizer(emails, s.logger)
	identities := service.NewIdentityService(s.store, s.logger)
	accounts := service.NewAuthService(normalizer, identities, s.store, tokens, s.logger)

	if s.providers == nil {
		s.providers = s.configuredProviders()
	}
	if len(s.providers) == 0 {
		s.logger.Warn("no OAuth provider configured; set GOOGLE_CLIENT_ID/SECRET or GITHUB_CLIENT_ID/SECRET")
	}

	authHandler := handler.NewAuthHandler(s.providers, accounts, handler.AuthConfig{
		FrontendURL:  s.config.FrontendURL,
		CookieSecure: s.config.CookieSecure,
		SessionTTL:   tokens.TTL(),
	}, s.logger)
	profileHandler := handler.NewProfileHandler(accounts, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/", healthHandler.HandleRoot)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/public/ping", healthHandler.HandlePing)
		r.With(auth.OptionalAuth(tokens)).Get("/me", authHandler.HandleMe)
		r.With(auth.RequireAuth(tokens)).Post("/profile", profileHandler.HandleUpdate)
	})

	return nil
}

func (s *Server) configuredProviders() []handler.OAuthProvider {
	var providers []handler.OAuthProvider
	if c := s.config.Google; c.Enabled() {
		providers = append(providers, auth.NewGoogleProvider(c.ClientID, c.ClientSecret, c.CallbackURL))
		s.logger.Info("OAuth provider enabled", slog.String("provider", "google"), slog.String("callback", c.CallbackURL))
	}
	if c := s.config.GitHub; c.Enabled() {
		providers = append(providers, auth.NewGitHubProvider(c.ClientID, c.ClientSecret, c.CallbackURL, s.config.GitHubAPIURL))
		s.logger.Info("OAuth provider enabled", slog.String("provider", "github"), slog.String("callback", c.CallbackURL))
	}
	return providers
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it on return.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		backend := "sqlite:" + s.config.DBPath
		if s.config.UsePostgres() {
			backend = "postgres"
		}
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
