package server

import (
	"net/http"

	"cinelog/pkg/domain"
	"cinelog/services/api/internal/app"
)

type voteRequest struct {
	Helpful *bool `json:"helpful"`
}

type replyRequest struct {
	Content string `json:"content"`
}

// handleMovieReviews serves both /api/movies/{id}/reviews and
// /api/reviews/movie/{movieId}.
func (s *Server) handleMovieReviews(w http.ResponseWriter, r *http.Request) {
	movieID := r.PathValue("id")
	if movieID == "" {
		movieID = r.PathValue("movieId")
	}
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := s.app.ListMovieReviews(r.Context(), movieID, app.ReviewListQuery{
		Page:   page,
		Limit:  limit,
		SortBy: q.Get("sortBy"),
		Order:  q.Get("sortOrder"),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeReviewList(w, list)
}

// handleUserReviews serves both /api/users/{id}/reviews and
// /api/reviews/user/{userId}.
func (s *Server) handleUserReviews(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		userID = r.PathValue("userId")
	}
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	list, err := s.app.ListUserReviews(r.Context(), userID, app.ReviewListQuery{Page: page, Limit: limit})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeReviewList(w, list)
}

func writeReviewList(w http.ResponseWriter, list app.ReviewList) {
	writeJSON(w, http.StatusOK, map[string]any{
		"reviews":    list.Reviews,
		"pagination": paginationJSON(list.Pagination, "totalReviews"),
	})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ReviewInput
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.CreateReview(r.Context(), user, r.PathValue("id"), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.app.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ReviewUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.UpdateReview(r.Context(), user, r.PathValue("id"), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteReview(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Review deleted successfully"})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Helpful == nil {
		writeError(w, http.StatusBadRequest, "helpful is required")
		return
	}
	reactions, err := s.app.Vote(r.Context(), user, r.PathValue("id"), *req.Helpful)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	msg := "Marked as not helpful"
	if *req.Helpful {
		msg = "Marked as helpful"
	}
	writeReactions(w, msg, reactions)
}

func (s *Server) handleRetractVote(w http.ResponseWriter, r *http.Request, user domain.User) {
	reactions, err := s.app.RetractVote(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeReactions(w, "Vote removed", reactions)
}

func writeReactions(w http.ResponseWriter, msg string, reactions domain.Reactions) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         msg,
		"helpfulCount":    reactions.HelpfulCount,
		"notHelpfulCount": reactions.NotHelpfulCount,
		"totalReactions":  reactions.TotalReactions,
	})
}

func (s *Server) handleAddReply(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req replyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.app.AddReply(r.Context(), user, r.PathValue("id"), req.Content)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (s *Server) handleUpdateReply(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req replyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.app.UpdateReply(r.Context(), user, r.PathValue("reviewId"), r.PathValue("replyId"), req.Content)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleDeleteReply(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteReply(r.Context(), user, r.PathValue("reviewId"), r.PathValue("replyId")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reply deleted successfully"})
}
