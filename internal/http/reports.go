package httpserver

import (
	"net/http"
)

func (s *Server) handleReportTopRated(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.Reports.TopRated(r.Context())
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReportByGenre(w http.ResponseWriter, r *http.Request) {
	genreID, ok := s.pathID(w, r, "idGenero")
	if !ok {
		return
	}
	rows, err := s.repo.Reports.ByGenre(r.Context(), genreID)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, rows)
}
