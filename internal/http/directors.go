package httpserver

import (
	"net/http"
)

func (s *Server) handleListDirectors(w http.ResponseWriter, r *http.Request) {
	directors, err := s.repo.Directors.List(r.Context())
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	out := make([]directorResponse, 0, len(directors))
	for _, d := range directors {
		out = append(out, toDirectorResponse(d))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDirector(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	director, err := s.repo.Directors.GetByID(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Director no encontrado")
		return
	}
	resp := toDirectorResponse(director)
	if resp.Movies == nil {
		resp.Movies = []filmographyItem{}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateDirector(w http.ResponseWriter, r *http.Request) {
	params, ok := s.decodePerson(w, r)
	if !ok {
		return
	}
	director, err := s.repo.Directors.Create(r.Context(), params)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusCreated, directorEnvelope{
		Message:  "Director registrado exitosamente",
		Director: toDirectorResponse(director),
	})
}

func (s *Server) handleUpdateDirector(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	patch, ok := s.decodePersonPatch(w, r)
	if !ok {
		return
	}
	director, err := s.repo.Directors.Update(r.Context(), id, patch)
	if err != nil {
		s.respondRepoError(w, r, err, "Director no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, directorEnvelope{
		Message:  "Director actualizado exitosamente",
		Director: toDirectorResponse(director),
	})
}

func (s *Server) handleDeleteDirector(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.repo.Directors.Delete(r.Context(), id); err != nil {
		s.respondRepoError(w, r, err, "Director no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Director eliminado exitosamente"})
}
