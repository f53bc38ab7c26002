package httpserver

import (
	"net/http"
)

func (s *Server) handleListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := s.repo.Actors.List(r.Context())
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	out := make([]actorResponse, 0, len(actors))
	for _, a := range actors {
		out = append(out, toActorResponse(a))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetActor(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, err := s.repo.Actors.GetByID(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Actor no encontrado")
		return
	}
	resp := toActorResponse(actor)
	if resp.Movies == nil {
		resp.Movies = []filmographyItem{}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateActor(w http.ResponseWriter, r *http.Request) {
	params, ok := s.decodePerson(w, r)
	if !ok {
		return
	}
	actor, err := s.repo.Actors.Create(r.Context(), params)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusCreated, actorEnvelope{
		Message: "Actor registrado exitosamente",
		Actor:   toActorResponse(actor),
	})
}

func (s *Server) handleUpdateActor(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	patch, ok := s.decodePersonPatch(w, r)
	if !ok {
		return
	}
	actor, err := s.repo.Actors.Update(r.Context(), id, patch)
	if err != nil {
		s.respondRepoError(w, r, err, "Actor no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, actorEnvelope{
		Message: "Actor actualizado exitosamente",
		Actor:   toActorResponse(actor),
	})
}

func (s *Server) handleDeleteActor(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.repo.Actors.Delete(r.Context(), id); err != nil {
		s.respondRepoError(w, r, err, "Actor no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Actor eliminado exitosamente"})
}
