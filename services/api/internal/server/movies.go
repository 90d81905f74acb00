package server

import (
	"net/http"

	"cinelog/services/api/internal/app"
)

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := s.app.ListMovies(r.Context(), app.MovieQuery{
		Genre:  q.Get("genre"),
		Year:   year,
		Search: q.Get("search"),
		SortBy: q.Get("sortBy"),
		Order:  q.Get("sortOrder"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"movies":     list.Movies,
		"pagination": paginationJSON(list.Pagination, "totalMovies"),
	})
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.app.Genres(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

func (s *Server) handleMovieDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.MovieDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSimilarMovies(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	movies, err := s.app.SimilarMovies(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"similarMovies": movies})
}
