// Package server is the composition root: it builds the auth stack,
// services and handlers from config and mounts them on a chi router.
//
// DEPENDENCY FLOW:
//
//	main.go: config.Load → OpenStore → docker.New (optional) → server.New
//	server.New: store → services → handlers → routes
//
// Handlers never touch the store directly and services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/config"
	"github.com/velric/velric-server/internal/executor"
	"github.com/velric/velric-server/internal/handler"
	"github.com/velric/velric-server/internal/middleware"
	"github.com/velric/velric-server/internal/repository"
	"github.com/velric/velric-server/internal/repository/postgres"
	sqliteRepo "github.com/velric/velric-server/internal/repository/sqlite"
	"github.com/velric/velric-server/internal/service"
)

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	exec   executor.Executor

	passwords  *auth.PasswordService
	httpClient *http.Client
}

type Option func(*Server)

// WithPasswordService replaces the production bcrypt cost; tests use it to
// stay fast.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// WithHTTPClient sets the client used for Supabase session checks.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// OpenStore opens the configured backend: Postgres when DATABASE_URL is set,
// the SQLite file otherwise.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.UsePostgres() {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	return db, nil
}

// New wires everything. exec may be nil, in which case the execute route is
// not mounted.
func New(cfg *config.Config, store repository.Store, exec executor.Executor, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		store:      store,
		exec:       exec,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.passwords == nil {
		s.passwords = auth.NewPasswordService()
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes builds the auth stack and mounts every route.
//
// ROUTES:
//
//	GET  /healthz
//	POST /api/auth/signup, /api/auth/login     (local sessions only)
//	GET  /auth/google/login, /auth/google/callback
//	GET  /api/missions, /api/missions/{id}
//	GET  /api/me                               (RequireAuth)
//	POST /api/submissions                      (RequireAuth)
//	GET  /api/feedback/{id}                    (RequireAuth)
//	POST /api/survey, GET /api/survey/status   (RequireAuth)
//	GET  /api/recruiter/candidates             (RequireAuth, recruiters)
//	POST /api/code/execute                     (RequireAuth, executor enabled)
//
// Middleware order: request id first so the logger can read it, recoverer
// last so it sees panics from everything inside.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Auth stack ===
	var (
		tokens   *auth.TokenService
		sessions auth.SessionVerifiers
	)
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret, s.config.JWTIssuer, s.config.SessionDuration())
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		sessions = append(sessions, tokens)
	}
	if s.config.SupabaseEnabled() {
		supabase, err := auth.NewSupabaseVerifier(s.config.Supabase.URL, s.config.Supabase.AnonKey, s.httpClient)
		if err != nil {
			return fmt.Errorf("creating supabase verifier: %w", err)
		}
		sessions = append(sessions, supabase)
	}
	if len(sessions) == 0 {
		return errors.New("no session verifier configured")
	}

	// Interfaces stay nil, not typed-nil, when Google is off.
	var (
		googleVerifier  auth.GoogleVerifier
		googleExchanger service.GoogleExchanger
		googleLogin     handler.LoginURLer
	)
	if s.config.GoogleEnabled() {
		g := auth.NewGoogleProvider(
			s.config.Google.ClientID,
			s.config.Google.ClientSecret,
			s.config.Google.CallbackURL,
			s.config.Google.UserInfoURL,
		)
		googleVerifier, googleExchanger, googleLogin = g, g, g
	}

	resolver, err := auth.NewResolver(s.store, googleVerifier, sessions, s.logger)
	if err != nil {
		return fmt.Errorf("creating auth resolver: %w", err)
	}
	requireAuth := auth.RequireAuth(resolver)

	// === Services and handlers ===
	missionService := service.NewMissionService(s.store, s.logger)
	submissionService := service.NewSubmissionService(s.store, s.store, s.store, service.HeuristicGrader{}, s.logger)
	surveyService := service.NewSurveyService(s.store, s.store, s.logger)
	recruiterService := service.NewRecruiterService(s.store, s.logger)

	missionHandler := handler.NewMissionHandler(missionService, s.logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, s.logger)
	surveyHandler := handler.NewSurveyHandler(surveyService, s.logger)
	recruiterHandler := handler.NewRecruiterHandler(recruiterService, s.logger)
	healthHandler := handler.NewHealthHandler(s.healthChecks(), s.logger)

	var authHandler *handler.AuthHandler
	if tokens != nil {
		authService := service.NewAuthService(s.store, tokens, s.passwords, googleExchanger, s.logger)
		authHandler = handler.NewAuthHandler(authService, googleLogin, s.logger)
	} else {
		// Remote sessions only: nothing here can mint a token, so the login
		// routes stay unmounted and /api/me reads the store directly.
		authService := service.NewAuthService(s.store, nil, s.passwords, nil, s.logger)
		authHandler = handler.NewAuthHandler(authService, nil, s.logger)
		s.logger.Warn("JWT_SECRET not set: local signup, login and Google login are disabled")
	}

	s.router.Get("/healthz", healthHandler.HandleHealth)

	if tokens != nil {
		s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	}

	s.router.Route("/api", func(r chi.Router) {
		if tokens != nil {
			r.Post("/auth/signup", authHandler.HandleSignup)
			r.Post("/auth/login", authHandler.HandleLogin)
		}

		r.Get("/missions", missionHandler.HandleList)
		r.Get("/missions/{id}", missionHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/submissions", submissionHandler.HandleSubmit)
			r.Get("/feedback/{id}", submissionHandler.HandleFeedback)
			r.Post("/survey", surveyHandler.HandleSubmit)
			r.Get("/survey/status", surveyHandler.HandleStatus)
			r.Get("/recruiter/candidates", recruiterHandler.HandleCandidates)

			if s.exec != nil {
				executeHandler := handler.NewExecuteHandler(s.exec, s.logger)
				r.Post("/code/execute", executeHandler.HandleExecute)
			}
		})
	})

	s.logger.Info("routes configured",
		slog.Bool("localSessions", tokens != nil),
		slog.Bool("supabaseSessions", s.config.SupabaseEnabled()),
		slog.Bool("googleLogin", googleLogin != nil),
		slog.Bool("executor", s.exec != nil),
	)
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if p, ok := s.store.(pinger); ok {
		checks["database"] = p.Ping
	}
	return checks
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // code execution can take a while
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		backend := "sqlite"
		if s.config.UsePostgres() {
			backend = "postgres"
		}
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("backend", backend),
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
