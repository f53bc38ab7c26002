package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinemateca/internal/auth"
	"github.com/Clark-Hu/cinemateca/internal/domain"
	"github.com/Clark-Hu/cinemateca/internal/metrics"
	"github.com/Clark-Hu/cinemateca/internal/repository"
)

type reviewCreateRequest struct {
	MovieID int64  `json:"IdPelicula" validate:"required,gt=0"`
	UserID  *int64 `json:"IdUsuario" validate:"omitempty,gt=0"`
	Title   string `json:"TituloResena" validate:"required,max=150"`
	Body    string `json:"CuerpoResena" validate:"required"`
	Score   int    `json:"Puntuacion" validate:"required,gte=1,lte=10"`
}

type reviewUpdateRequest struct {
	Title *string `json:"TituloResena" validate:"omitempty,max=150"`
	Body  *string `json:"CuerpoResena"`
	Score *int    `json:"Puntuacion" validate:"omitempty,gte=1,lte=10"`
}

type reviewStatusRequest struct {
	Status string `json:"Estado" validate:"required,oneof=Pendiente Publicado Rechazado"`
}

type reviewerResponse struct {
	ID       int64  `json:"IdUsuario"`
	Username string `json:"NombreUsuario"`
}

type reviewedMovieResponse struct {
	ID       int64   `json:"IdPelicula"`
	Title    string  `json:"Titulo"`
	Synopsis *string `json:"Sinopsis"`
}

type reviewResponse struct {
	ID        int64                  `json:"IdResena"`
	MovieID   int64                  `json:"IdPelicula"`
	UserID    int64                  `json:"IdUsuario"`
	Title     string                 `json:"TituloResena"`
	Body      string                 `json:"CuerpoResena"`
	Score     int                    `json:"Puntuacion"`
	CreatedAt time.Time              `json:"FechaResena"`
	Status    domain.ReviewStatus    `json:"Estado"`
	Author    *reviewerResponse      `json:"Usuario,omitempty"`
	Movie     *reviewedMovieResponse `json:"Pelicula,omitempty"`
}

type averageResponse struct {
	MovieID int64    `json:"IdPelicula"`
	Average *float64 `json:"CalificacionPromedio"`
	Count   int64    `json:"TotalResenas"`
}

type reviewEnvelope struct {
	Message string          `json:"mensaje"`
	Review  reviewResponse  `json:"resena"`
	Average averageResponse `json:"promedio"`
}

type reviewDeleteResponse struct {
	Message string          `json:"mensaje"`
	Average averageResponse `json:"promedio"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewCreateRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		s.respondError(w, kindValidation, "TituloResena y CuerpoResena son obligatorios")
		return
	}

	caller := identity(r)
	authorID := caller.UserID
	if req.UserID != nil {
		authorID = *req.UserID
	}
	if !auth.CanActOn(caller, authorID) {
		metrics.RecordAuthFailure("forbidden")
		s.respondError(w, kindForbidden, "Solo puedes publicar reseñas a tu nombre")
		return
	}

	review, summary, err := s.repo.Reviews.Create(r.Context(), repository.ReviewCreateParams{
		MovieID: req.MovieID,
		UserID:  authorID,
		Title:   title,
		Body:    body,
		Score:   req.Score,
	})
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	metrics.RecordReviewMutation("create")
	s.logAverage(r, summary)

	s.respondJSON(w, http.StatusCreated, reviewEnvelope{
		Message: "Reseña registrada exitosamente",
		Review:  toReviewResponse(review),
		Average: toAverageResponse(summary),
	})
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req reviewUpdateRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	if !s.authorizeReview(w, r, id) {
		return
	}

	review, summary, err := s.repo.Reviews.Update(r.Context(), id, repository.ReviewPatch{
		Title: normalizeStringPtr(req.Title),
		Body:  normalizeStringPtr(req.Body),
		Score: req.Score,
	})
	if err != nil {
		s.respondRepoError(w, r, err, "Reseña no encontrada")
		return
	}
	metrics.RecordReviewMutation("update")
	s.logAverage(r, summary)

	s.respondJSON(w, http.StatusOK, reviewEnvelope{
		Message: "Reseña actualizada exitosamente",
		Review:  toReviewResponse(review),
		Average: toAverageResponse(summary),
	})
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if !s.authorizeReview(w, r, id) {
		return
	}

	summary, err := s.repo.Reviews.Delete(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Reseña no encontrada")
		return
	}
	metrics.RecordReviewMutation("delete")
	s.logAverage(r, summary)

	s.respondJSON(w, http.StatusOK, reviewDeleteResponse{
		Message: "Reseña eliminada exitosamente",
		Average: toAverageResponse(summary),
	})
}

// authorizeReview loads the review and checks that the caller owns it or is an admin.
func (s *Server) authorizeReview(w http.ResponseWriter, r *http.Request, id int64) bool {
	review, err := s.repo.Reviews.GetByID(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Reseña no encontrada")
		return false
	}
	if !auth.CanActOn(identity(r), review.UserID) {
		metrics.RecordAuthFailure("forbidden")
		s.respondError(w, kindForbidden, "Solo puedes modificar tus propias reseñas")
		return false
	}
	return true
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	reviews, err := s.repo.Reviews.ListByMovie(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponses(reviews))
}

func (s *Server) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	reviews, err := s.repo.Reviews.ListByUser(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponses(reviews))
}

func (s *Server) handleModerateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req reviewStatusRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	review, summary, err := s.repo.Reviews.SetStatus(r.Context(), id, domain.ReviewStatus(req.Status))
	if err != nil {
		s.respondRepoError(w, r, err, "Reseña no encontrada")
		return
	}
	metrics.RecordReviewMutation("moderate")
	s.logAverage(r, summary)

	s.respondJSON(w, http.StatusOK, reviewEnvelope{
		Message: "Estado de la reseña actualizado",
		Review:  toReviewResponse(review),
		Average: toAverageResponse(summary),
	})
}

func (s *Server) handleRefreshAverage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := s.repo.Reviews.RefreshAverage(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	metrics.RecordAverageRefresh()
	s.respondJSON(w, http.StatusOK, toAverageResponse(summary))
}

func (s *Server) logAverage(r *http.Request, summary domain.RatingSummary) {
	event := zerolog.Ctx(r.Context()).Debug().
		Int64("movie_id", summary.MovieID).
		Int64("reviews", summary.Count)
	if summary.Average != nil {
		event = event.Float64("average", *summary.Average)
	}
	event.Msg("movie average recomputed")
}

func toAverageResponse(s domain.RatingSummary) averageResponse {
	return averageResponse{MovieID: s.MovieID, Average: s.Average, Count: s.Count}
}

func toReviewResponses(reviews []domain.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, toReviewResponse(rv))
	}
	return out
}

func toReviewResponse(rv domain.Review) reviewResponse {
	resp := reviewResponse{
		ID:        rv.ID,
		MovieID:   rv.MovieID,
		UserID:    rv.UserID,
		Title:     rv.Title,
		Body:      rv.Body,
		Score:     rv.Score,
		CreatedAt: rv.CreatedAt,
		Status:    rv.Status,
	}
	if rv.Author != nil {
		resp.Author = &reviewerResponse{ID: rv.Author.ID, Username: rv.Author.Username}
	}
	if rv.Movie != nil {
		resp.Movie = &reviewedMovieResponse{ID: rv.MovieID, Title: rv.Movie.Title, Synopsis: rv.Movie.Synopsis}
	}
	return resp
}
