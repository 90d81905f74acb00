package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cinelog/pkg/domain"
	"cinelog/services/api/internal/app"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.app.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	list, err := s.app.ListFollowing(r.Context(), r.PathValue("id"), page, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"following":  list.Users,
		"pagination": paginationJSON(list.Pagination, "totalFollowing"),
	})
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	list, err := s.app.ListFollowers(r.Context(), r.PathValue("id"), page, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"followers":  list.Users,
		"pagination": paginationJSON(list.Pagination, "totalFollowers"),
	})
}

// handleUserAction dispatches POST /api/users/{list}/{movieId} and
// POST /api/users/{id}/follow.
func (s *Server) handleUserAction(w http.ResponseWriter, r *http.Request, user domain.User) {
	first, second := r.PathValue("first"), r.PathValue("second")
	if list, ok := domain.ParseMovieList(first); ok {
		s.handleMovieList(w, r, user, list, second)
		return
	}
	if second == "follow" {
		s.handleFollow(w, r, user, first)
		return
	}
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request, user domain.User, targetID string) {
	res, err := s.app.ToggleFollow(r.Context(), user, targetID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	msg := "Unfollowed successfully"
	if res.Following {
		msg = "Followed successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        msg,
		"following":      res.Following,
		"followersCount": res.FollowersCount,
	})
}

func (s *Server) handleMovieList(w http.ResponseWriter, r *http.Request, user domain.User, list domain.MovieList, movieID string) {
	switch list {
	case domain.ListFavorites:
		added, err := s.app.ToggleFavorite(r.Context(), user, movieID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		msg := "Removed from favorites"
		if added {
			msg = "Added to favorites"
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": msg, "inFavorites": added})
	case domain.ListWatchlist:
		added, err := s.app.ToggleWatchlist(r.Context(), user, movieID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		msg := "Removed from watchlist"
		if added {
			msg = "Added to watchlist"
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": msg, "inWatchlist": added})
	case domain.ListWatched:
		var req app.WatchedInput
		// The body is optional.
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, created, err := s.app.MarkWatched(r.Context(), user, movieID, req)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		msg := "Watched status updated"
		if created {
			msg = "Movie marked as watched"
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": msg, "watched": entry})
	}
}
