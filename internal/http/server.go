package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinemateca/internal/auth"
	"github.com/Clark-Hu/cinemateca/internal/config"
	"github.com/Clark-Hu/cinemateca/internal/domain"
	"github.com/Clark-Hu/cinemateca/internal/repository"
	"github.com/Clark-Hu/cinemateca/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	store   *store.Store
	repo    *repository.Repository
	tokens  *auth.TokenManager
	hasher  *auth.Hasher
	logger  zerolog.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, repo *repository.Repository, tokens *auth.TokenManager, hasher *auth.Hasher, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		cfg:    cfg,
		store:  st,
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
		logger: logger,
		router: r,
	}
	r.Use(s.recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, kindNotFound, "Recurso no encontrado")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, kindNotAllowed, "Método no permitido")
	})
	s.registerRoutes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	authed := s.require()
	admin := s.require(auth.IsAdmin)
	member := s.require(auth.AnyRole(domain.RoleClient, domain.RoleAdmin))
	limited := s.authRateLimit()

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.With(limited).Post("/login", s.handleLogin)

	s.router.Route("/usuarios", func(r chi.Router) {
		r.With(limited).Post("/registro", s.handleRegister)
		r.With(authed).Get("/{id}", s.handleGetUser)
		r.Get("/{id}/resenas", s.handleListUserReviews)
	})

	s.router.Route("/directores", func(r chi.Router) {
		r.With(authed).Get("/", s.handleListDirectors)
		r.With(authed).Get("/{id}", s.handleGetDirector)
		r.With(admin).Post("/", s.handleCreateDirector)
		r.With(admin).Put("/{id}", s.handleUpdateDirector)
		r.With(admin).Delete("/{id}", s.handleDeleteDirector)
	})

	s.router.Route("/actores", func(r chi.Router) {
		r.With(authed).Get("/", s.handleListActors)
		r.With(authed).Get("/{id}", s.handleGetActor)
		r.With(admin).Post("/", s.handleCreateActor)
		r.With(admin).Put("/{id}", s.handleUpdateActor)
		r.With(admin).Delete("/{id}", s.handleDeleteActor)
	})

	s.router.Route("/generos", func(r chi.Router) {
		r.Get("/", s.handleListGenres)
		r.Get("/{id}", s.handleGetGenre)
		r.With(admin).Post("/", s.handleCreateGenre)
		r.With(admin).Put("/{id}", s.handleUpdateGenre)
		r.With(admin).Delete("/{id}", s.handleDeleteGenre)
	})

	s.router.Route("/peliculas", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.With(admin).Post("/registro", s.handleCreateMovie)
		r.With(admin).Put("/actualizar/{id}", s.handleUpdateMovie)
		r.With(admin).Delete("/eliminar/{id}", s.handleDeleteMovie)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.With(authed).Get("/actores", s.handleGetCast)
			r.With(admin).Post("/actores", s.handleReplaceCast)
			r.Get("/generos", s.handleGetMovieGenres)
			r.With(admin).Post("/generos", s.handleReplaceMovieGenres)
			r.Get("/resenas", s.handleListMovieReviews)
			r.Get("/actualizar-promedio", s.handleRefreshAverage)
		})
	})

	s.router.Route("/resenas", func(r chi.Router) {
		r.Use(member)
		r.Post("/", s.handleCreateReview)
		r.Put("/{id}", s.handleUpdateReview)
		r.Delete("/{id}", s.handleDeleteReview)
		r.Get("/usuario/{id}", s.handleListUserReviews)
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(admin)
		r.Get("/peliculas", s.handleAdminListMovies)
		r.Get("/usuarios", s.handleAdminListUsers)
		r.Put("/usuarios/{id}/estado", s.handleToggleUser)
		r.Put("/resenas/{id}/estado", s.handleModerateReview)
	})

	s.router.Route("/reportes", func(r chi.Router) {
		r.Use(admin)
		r.Get("/peliculas-puntuacion", s.handleReportTopRated)
		r.Get("/peliculas-genero/{idGenero}", s.handleReportByGenre)
	})
}

// authRateLimit limits login and registration per client IP. A limit of 0 disables it.
func (s *Server) authRateLimit() func(http.Handler) http.Handler {
	if s.cfg.AuthRateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		s.cfg.AuthRateLimitRequests,
		time.Duration(s.cfg.AuthRateLimitWindowSecs)*time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			zerolog.Ctx(r.Context()).Warn().Msg("auth rate limit exceeded")
			s.respondError(w, kindRateLimited, "Demasiadas solicitudes, intenta más tarde")
		}),
	)
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
