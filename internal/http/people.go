package httpserver

import (
	"net/http"
	"strings"

	"github.com/Clark-Hu/cinemateca/internal/domain"
	"github.com/Clark-Hu/cinemateca/internal/repository"
)

type personCreateRequest struct {
	FirstName string  `json:"Nombres" validate:"required,max=50"`
	LastName  string  `json:"Apellidos" validate:"required,max=50"`
	BirthDate *string `json:"FechaNacimiento" validate:"omitempty,datetime=2006-01-02"`
}

type personUpdateRequest struct {
	FirstName *string `json:"Nombres" validate:"omitempty,max=50"`
	LastName  *string `json:"Apellidos" validate:"omitempty,max=50"`
	BirthDate *string `json:"FechaNacimiento" validate:"omitempty,datetime=2006-01-02"`
}

type filmographyItem struct {
	ID            int64   `json:"IdPelicula"`
	Title         string  `json:"Titulo"`
	Synopsis      *string `json:"Sinopsis"`
	ReleaseYear   int     `json:"AnioEstreno"`
	CharacterName *string `json:"NombrePersonaje,omitempty"`
}

type directorResponse struct {
	ID        int64             `json:"IdDirector"`
	FirstName string            `json:"Nombres"`
	LastName  string            `json:"Apellidos"`
	BirthDate *string           `json:"FechaNacimiento"`
	Movies    []filmographyItem `json:"Peliculas,omitempty"`
}

type actorResponse struct {
	ID        int64             `json:"IdActor"`
	FirstName string            `json:"Nombres"`
	LastName  string            `json:"Apellidos"`
	BirthDate *string           `json:"FechaNacimiento"`
	Movies    []filmographyItem `json:"Peliculas,omitempty"`
}

type directorEnvelope struct {
	Message  string           `json:"mensaje"`
	Director directorResponse `json:"director"`
}

type actorEnvelope struct {
	Message string        `json:"mensaje"`
	Actor   actorResponse `json:"actor"`
}

func (req personCreateRequest) params() (repository.PersonParams, error) {
	birth, err := parseDatePtr(req.BirthDate)
	if err != nil {
		return repository.PersonParams{}, err
	}
	return repository.PersonParams{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		BirthDate: birth,
	}, nil
}

func (req personUpdateRequest) patch() (repository.PersonPatch, error) {
	birth, err := parseDatePtr(req.BirthDate)
	if err != nil {
		return repository.PersonPatch{}, err
	}
	return repository.PersonPatch{
		FirstName: normalizeStringPtr(req.FirstName),
		LastName:  normalizeStringPtr(req.LastName),
		BirthDate: birth,
	}, nil
}

// decodePerson reads a create body; blank names after trimming count as missing.
func (s *Server) decodePerson(w http.ResponseWriter, r *http.Request) (repository.PersonParams, bool) {
	var req personCreateRequest
	if !s.decodeValid(w, r, &req) {
		return repository.PersonParams{}, false
	}
	params, err := req.params()
	if err != nil {
		s.respondError(w, kindValidation, "FechaNacimiento debe tener el formato YYYY-MM-DD")
		return repository.PersonParams{}, false
	}
	if params.FirstName == "" || params.LastName == "" {
		s.respondError(w, kindValidation, "Nombres y Apellidos son obligatorios")
		return repository.PersonParams{}, false
	}
	return params, true
}

func (s *Server) decodePersonPatch(w http.ResponseWriter, r *http.Request) (repository.PersonPatch, bool) {
	var req personUpdateRequest
	if !s.decodeValid(w, r, &req) {
		return repository.PersonPatch{}, false
	}
	patch, err := req.patch()
	if err != nil {
		s.respondError(w, kindValidation, "FechaNacimiento debe tener el formato YYYY-MM-DD")
		return repository.PersonPatch{}, false
	}
	return patch, true
}

func toFilmography(refs []domain.MovieRef) []filmographyItem {
	if refs == nil {
		return nil
	}
	out := make([]filmographyItem, 0, len(refs))
	for _, m := range refs {
		out = append(out, filmographyItem{
			ID:            m.ID,
			Title:         m.Title,
			Synopsis:      m.Synopsis,
			ReleaseYear:   m.ReleaseYear,
			CharacterName: m.CharacterName,
		})
	}
	return out
}

func toDirectorResponse(d domain.Director) directorResponse {
	return directorResponse{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		BirthDate: formatDatePtr(d.BirthDate),
		Movies:    toFilmography(d.Movies),
	}
}

func toActorResponse(a domain.Actor) actorResponse {
	return actorResponse{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		BirthDate: formatDatePtr(a.BirthDate),
		Movies:    toFilmography(a.Movies),
	}
}
