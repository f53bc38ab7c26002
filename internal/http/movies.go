package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/cinemateca/internal/domain"
	"github.com/Clark-Hu/cinemateca/internal/repository"
)

const noDirector = "Sin director"

type castRequest struct {
	ActorID       int64   `json:"IdActor" validate:"required,gt=0"`
	CharacterName *string `json:"NombrePersonaje" validate:"omitempty,max=100"`
}

type movieCreateRequest struct {
	Title       string        `json:"Titulo" validate:"required,max=200"`
	Synopsis    *string       `json:"Sinopsis"`
	ReleaseYear int           `json:"AnioEstreno" validate:"required,gte=1888,lte=2100"`
	DirectorID  *int64        `json:"IdDirector" validate:"omitempty,gt=0"`
	PosterURL   *string       `json:"UrlPoster" validate:"omitempty,max=500"`
	TrailerURL  *string       `json:"UrlTrailer" validate:"omitempty,max=500"`
	Status      *string       `json:"Estado" validate:"omitempty,oneof=Borrador Publicado"`
	Cast        []castRequest `json:"actores" validate:"omitempty,dive"`
	GenreIDs    []int64       `json:"generos" validate:"omitempty,dive,gt=0"`
}

type movieUpdateRequest struct {
	Title       *string `json:"Titulo" validate:"omitempty,max=200"`
	Synopsis    *string `json:"Sinopsis"`
	ReleaseYear *int    `json:"AnioEstreno" validate:"omitempty,gte=1888,lte=2100"`
	DirectorID  *int64  `json:"IdDirector" validate:"omitempty,gt=0"`
	PosterURL   *string `json:"UrlPoster" validate:"omitempty,max=500"`
	TrailerURL  *string `json:"UrlTrailer" validate:"omitempty,max=500"`
	Status      *string `json:"Estado" validate:"omitempty,oneof=Borrador Publicado"`
}

type castReplaceRequest struct {
	Cast []castRequest `json:"actores" validate:"dive"`
}

type genresReplaceRequest struct {
	GenreIDs []int64 `json:"generos" validate:"dive,gt=0"`
}

type castMemberResponse struct {
	ActorID       int64   `json:"IdActor"`
	FirstName     string  `json:"Nombres"`
	LastName      string  `json:"Apellidos"`
	CharacterName *string `json:"NombrePersonaje"`
}

type movieResponse struct {
	ID            int64                `json:"IdPelicula"`
	Title         string               `json:"Titulo"`
	Synopsis      *string              `json:"Sinopsis"`
	ReleaseYear   int                  `json:"AnioEstreno"`
	DirectorID    *int64               `json:"IdDirector"`
	PosterURL     *string              `json:"UrlPoster"`
	TrailerURL    *string              `json:"UrlTrailer"`
	PublishedAt   *time.Time           `json:"FechaPublicacion"`
	Status        domain.MovieStatus   `json:"Estado"`
	AverageRating *float64             `json:"CalificacionPromedio"`
	Director      *directorResponse    `json:"Director,omitempty"`
	Genres        []genreResponse      `json:"Generos"`
	Cast          []castMemberResponse `json:"Actores"`
	Reviews       []reviewResponse     `json:"Resenas,omitempty"`
}

type adminMovieResponse struct {
	ID            int64              `json:"IdPelicula"`
	Title         string             `json:"Titulo"`
	Synopsis      *string            `json:"Sinopsis"`
	ReleaseYear   int                `json:"AnioEstreno"`
	DirectorID    *int64             `json:"IdDirector"`
	DirectorName  string             `json:"NombreDirector"`
	PosterURL     *string            `json:"UrlPoster"`
	TrailerURL    *string            `json:"UrlTrailer"`
	PublishedAt   *time.Time         `json:"FechaPublicacion"`
	Status        domain.MovieStatus `json:"Estado"`
	AverageRating float64            `json:"CalificacionPromedio"`
	Genres        []genreResponse    `json:"Generos"`
}

type movieEnvelope struct {
	Message string        `json:"mensaje"`
	Movie   movieResponse `json:"pelicula"`
}

type castEnvelope struct {
	Message string               `json:"mensaje"`
	Cast    []castMemberResponse `json:"actores"`
}

type genresEnvelope struct {
	Message string          `json:"mensaje"`
	Genres  []genreResponse `json:"generos"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	published := domain.MoviePublished
	movies, err := s.repo.Movies.List(r.Context(), repository.MovieListFilters{Status: &published})
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	out := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, toMovieResponse(m))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.repo.Movies.List(r.Context(), repository.MovieListFilters{})
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	out := make([]adminMovieResponse, 0, len(movies))
	for _, m := range movies {
		item := adminMovieResponse{
			ID:           m.ID,
			Title:        m.Title,
			Synopsis:     m.Synopsis,
			ReleaseYear:  m.ReleaseYear,
			DirectorID:   m.DirectorID,
			DirectorName: noDirector,
			PosterURL:    m.PosterURL,
			TrailerURL:   m.TrailerURL,
			PublishedAt:  m.PublishedAt,
			Status:       m.Status,
			Genres:       toGenreResponses(m.Genres),
		}
		if m.Director != nil {
			item.DirectorName = m.Director.FullName()
		}
		if m.AverageRating != nil {
			item.AverageRating = *m.AverageRating
		}
		out = append(out, item)
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	movie, err := s.repo.Movies.GetDetail(r.Context(), id, true)
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	resp := toMovieResponse(movie)
	if resp.Reviews == nil {
		resp.Reviews = []reviewResponse{}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieCreateRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		s.respondError(w, kindValidation, "Titulo es obligatorio")
		return
	}

	params := repository.MovieCreateParams{
		Title:       title,
		Synopsis:    normalizeStringPtr(req.Synopsis),
		ReleaseYear: req.ReleaseYear,
		DirectorID:  req.DirectorID,
		PosterURL:   normalizeStringPtr(req.PosterURL),
		TrailerURL:  normalizeStringPtr(req.TrailerURL),
		Status:      domain.MoviePublished,
		Cast:        toCastAssignments(req.Cast),
		GenreIDs:    req.GenreIDs,
	}
	if req.Status != nil {
		params.Status = domain.MovieStatus(*req.Status)
	}

	movie, err := s.repo.Movies.Create(r.Context(), params)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusCreated, movieEnvelope{
		Message: "Película registrada exitosamente",
		Movie:   toMovieResponse(movie),
	})
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req movieUpdateRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	patch := repository.MoviePatch{
		Title:       normalizeStringPtr(req.Title),
		Synopsis:    normalizeStringPtr(req.Synopsis),
		ReleaseYear: req.ReleaseYear,
		DirectorID:  req.DirectorID,
		PosterURL:   normalizeStringPtr(req.PosterURL),
		TrailerURL:  normalizeStringPtr(req.TrailerURL),
	}
	if req.Status != nil {
		status := domain.MovieStatus(*req.Status)
		patch.Status = &status
	}

	if _, err := s.repo.Movies.Update(r.Context(), id, patch); err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	movie, err := s.repo.Movies.GetDetail(r.Context(), id, false)
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	s.respondJSON(w, http.StatusOK, movieEnvelope{
		Message: "Película actualizada exitosamente",
		Movie:   toMovieResponse(movie),
	})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.repo.Movies.Delete(r.Context(), id); err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Película eliminada exitosamente"})
}

func (s *Server) handleGetCast(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	cast, err := s.repo.Movies.Cast(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	s.respondJSON(w, http.StatusOK, toCastResponses(cast))
}

func (s *Server) handleReplaceCast(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req castReplaceRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	cast, err := s.repo.Movies.ReplaceCast(r.Context(), id, toCastAssignments(req.Cast))
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	s.respondJSON(w, http.StatusOK, castEnvelope{
		Message: "Actores asignados exitosamente",
		Cast:    toCastResponses(cast),
	})
}

func (s *Server) handleGetMovieGenres(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	genres, err := s.repo.Movies.Genres(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	s.respondJSON(w, http.StatusOK, toGenreResponses(genres))
}

func (s *Server) handleReplaceMovieGenres(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req genresReplaceRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	genres, err := s.repo.Movies.ReplaceGenres(r.Context(), id, req.GenreIDs)
	if err != nil {
		s.respondRepoError(w, r, err, "Película no encontrada")
		return
	}
	s.respondJSON(w, http.StatusOK, genresEnvelope{
		Message: "Géneros asignados exitosamente",
		Genres:  toGenreResponses(genres),
	})
}

func toCastAssignments(items []castRequest) []domain.CastAssignment {
	out := make([]domain.CastAssignment, 0, len(items))
	for _, item := range items {
		out = append(out, domain.CastAssignment{
			ActorID:       item.ActorID,
			CharacterName: normalizeStringPtr(item.CharacterName),
		})
	}
	return out
}

func toCastResponses(cast []domain.CastMember) []castMemberResponse {
	out := make([]castMemberResponse, 0, len(cast))
	for _, c := range cast {
		out = append(out, castMemberResponse{
			ActorID:       c.ActorID,
			FirstName:     c.FirstName,
			LastName:      c.LastName,
			CharacterName: c.CharacterName,
		})
	}
	return out
}

func toMovieResponse(m domain.MovieDetail) movieResponse {
	resp := movieResponse{
		ID:            m.ID,
		Title:         m.Title,
		Synopsis:      m.Synopsis,
		ReleaseYear:   m.ReleaseYear,
		DirectorID:    m.DirectorID,
		PosterURL:     m.PosterURL,
		TrailerURL:    m.TrailerURL,
		PublishedAt:   m.PublishedAt,
		Status:        m.Status,
		AverageRating: m.AverageRating,
		Genres:        toGenreResponses(m.Genres),
		Cast:          toCastResponses(m.Cast),
	}
	if m.Director != nil {
		d := toDirectorResponse(*m.Director)
		resp.Director = &d
	}
	if m.Reviews != nil {
		resp.Reviews = make([]reviewResponse, 0, len(m.Reviews))
		for _, rv := range m.Reviews {
			resp.Reviews = append(resp.Reviews, toReviewResponse(rv))
		}
	}
	return resp
}
