package httpserver

import (
	"net/http"
	"strings"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

type genreRequest struct {
	Name string `json:"NombreGenero" validate:"required,max=30"`
}

type genreResponse struct {
	ID   int64  `json:"IdGenero"`
	Name string `json:"NombreGenero"`
}

type genreEnvelope struct {
	Message string        `json:"mensaje"`
	Genre   genreResponse `json:"genero"`
}

func toGenreResponses(genres []domain.Genre) []genreResponse {
	out := make([]genreResponse, 0, len(genres))
	for _, g := range genres {
		out = append(out, genreResponse{ID: g.ID, Name: g.Name})
	}
	return out
}

func (s *Server) decodeGenreName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req genreRequest
	if !s.decodeValid(w, r, &req) {
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.respondError(w, kindValidation, "NombreGenero es obligatorio")
		return "", false
	}
	return name, true
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.repo.Genres.List(r.Context())
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, toGenreResponses(genres))
}

func (s *Server) handleGetGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	genre, err := s.repo.Genres.GetByID(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Género no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, genreResponse{ID: genre.ID, Name: genre.Name})
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	name, ok := s.decodeGenreName(w, r)
	if !ok {
		return
	}
	genre, err := s.repo.Genres.Create(r.Context(), name)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusCreated, genreEnvelope{
		Message: "Género registrado exitosamente",
		Genre:   genreResponse{ID: genre.ID, Name: genre.Name},
	})
}

func (s *Server) handleUpdateGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	name, ok := s.decodeGenreName(w, r)
	if !ok {
		return
	}
	genre, err := s.repo.Genres.Rename(r.Context(), id, name)
	if err != nil {
		s.respondRepoError(w, r, err, "Género no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, genreEnvelope{
		Message: "Género actualizado exitosamente",
		Genre:   genreResponse{ID: genre.ID, Name: genre.Name},
	})
}

func (s *Server) handleDeleteGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.repo.Genres.Delete(r.Context(), id); err != nil {
		s.respondRepoError(w, r, err, "Género no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Género eliminado exitosamente"})
}
