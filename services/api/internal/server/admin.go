package server

import (
	"net/http"

	"cinelog/pkg/domain"
)

type userStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request, admin domain.User) {
	userID := r.PathValue("id")
	job, err := s.app.RequestReconcile(r.Context(), userID)
	if err != nil {
		s.audit(r, "api.admin.reconcile", "fail", "user_id", admin.ID, "target_id", userID, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.reconcile", "success", "user_id", admin.ID, "target_id", userID, "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleAdminJob(w http.ResponseWriter, r *http.Request, _ domain.User) {
	job, err := s.app.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req userStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}
	userID := r.PathValue("id")
	view, err := s.app.SetUserStatus(r.Context(), admin, userID, *req.IsActive)
	if err != nil {
		s.audit(r, "api.admin.user.status", "fail", "user_id", admin.ID, "target_id", userID, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.user.status", "success", "user_id", admin.ID, "target_id", userID, "active", *req.IsActive)
	writeJSON(w, http.StatusOK, map[string]any{"user": view})
}
