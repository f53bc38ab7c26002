package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinemateca/internal/repository"
	"github.com/Clark-Hu/cinemateca/internal/validation"
)

const maxRequestBody = 1 << 20 // 1 MiB

const dateLayout = "2006-01-02"

type errorKind string

const (
	kindValidation      errorKind = "VALIDATION_ERROR"
	kindConflict        errorKind = "CONFLICT"
	kindUnauthenticated errorKind = "UNAUTHENTICATED"
	kindForbidden       errorKind = "FORBIDDEN"
	kindNotFound        errorKind = "NOT_FOUND"
	kindNotAllowed      errorKind = "METHOD_NOT_ALLOWED"
	kindRateLimited     errorKind = "RATE_LIMITED"
	kindInternal        errorKind = "INTERNAL_ERROR"
)

func (k errorKind) status() int {
	switch k {
	case kindValidation, kindConflict:
		return http.StatusBadRequest
	case kindUnauthenticated:
		return http.StatusUnauthorized
	case kindForbidden:
		return http.StatusForbidden
	case kindNotFound:
		return http.StatusNotFound
	case kindNotAllowed:
		return http.StatusMethodNotAllowed
	case kindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Code    errorKind `json:"codigo"`
	Message string    `json:"mensaje"`
}

type messageResponse struct {
	Message string `json:"mensaje"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, kind errorKind, message string) {
	s.respondJSON(w, kind.status(), errorResponse{Code: kind, Message: message})
}

// respondRepoError maps repository sentinels onto the error contract. notFound is the message
// used for ErrNotFound; anything unclassified is logged and reported as an internal error.
func (s *Server) respondRepoError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.respondError(w, kindNotFound, notFound)
	case errors.Is(err, repository.ErrConflict):
		s.respondError(w, kindConflict, "El registro ya existe")
	case errors.Is(err, repository.ErrInUse):
		s.respondError(w, kindConflict, "No se puede eliminar porque tiene películas asociadas")
	case errors.Is(err, repository.ErrInvalidReference):
		s.respondError(w, kindValidation, "Referencia inválida o valor fuera de rango")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("repository call failed")
		s.respondError(w, kindInternal, "Error interno del servidor")
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, kindValidation, "JSON mal formado")
	case errors.As(err, &typeError):
		s.respondError(w, kindValidation, fmt.Sprintf("Valor inválido para el campo %s", typeError.Field))
	case errors.As(err, &tooLarge):
		s.respondError(w, kindValidation, "El cuerpo de la petición es demasiado grande")
	case errors.Is(err, io.EOF):
		s.respondError(w, kindValidation, "El cuerpo de la petición no puede estar vacío")
	default:
		s.respondError(w, kindValidation, "No se pudo interpretar el cuerpo de la petición")
	}
}

// decodeValid decodes and validates the body, writing the error response itself on failure.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSONBody(w, r, dst); err != nil {
		s.respondDecodeError(w, err)
		return false
	}
	if err := validation.Struct(dst); err != nil {
		s.respondError(w, kindValidation, err.Error())
		return false
	}
	return true
}

// parseID reads a positive integer path parameter.
func parseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// pathID is parseID that answers 400 on failure.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := parseID(r, name)
	if err != nil {
		s.respondError(w, kindValidation, "Identificador inválido")
		return 0, false
	}
	return id, true
}

func normalizeStringPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}

func parseDatePtr(raw *string) (*time.Time, error) {
	raw = normalizeStringPtr(raw)
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
