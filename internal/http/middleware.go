package httpserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinemateca/internal/auth"
	"github.com/Clark-Hu/cinemateca/internal/metrics"
)

// requestLogger attaches a request-scoped logger to the context, then logs and records
// metrics for the request once the route pattern is known.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With().
				Str("req_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			r = r.WithContext(logger.WithContext(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, route, status, elapsed)

			event := zerolog.Ctx(r.Context()).Info()
			if status >= http.StatusInternalServerError {
				event = zerolog.Ctx(r.Context()).Error()
			}
			event.
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Msg("request completed")
		})
	}
}

// recoverer turns a handler panic into a logged 500 with the usual error body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			zerolog.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			s.respondError(w, kindInternal, "Error interno del servidor")
		}()
		next.ServeHTTP(w, r)
	})
}

// require authenticates the bearer token and then evaluates every predicate in order.
// A missing or unverifiable token yields 401; the first failing predicate yields 403.
func (s *Server) require(preds ...auth.Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				metrics.RecordAuthFailure("missing_token")
				s.respondError(w, kindUnauthenticated, "Token no proporcionado")
				return
			}

			claims, err := s.tokens.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					metrics.RecordAuthFailure("expired_token")
					s.respondError(w, kindUnauthenticated, "Token expirado")
					return
				}
				metrics.RecordAuthFailure("invalid_token")
				s.respondError(w, kindUnauthenticated, "Token inválido")
				return
			}

			id := auth.IdentityFromClaims(claims)
			for _, allowed := range preds {
				if !allowed(id) {
					metrics.RecordAuthFailure("forbidden")
					s.respondError(w, kindForbidden, "Acceso denegado: permisos insuficientes")
					return
				}
			}

			ctx := auth.WithIdentity(r.Context(), id)
			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("user_id", id.UserID)
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identity returns the caller set by require. Handlers behind require always have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
