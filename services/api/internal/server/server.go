package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cinelog/internal/ratelimit"
	"cinelog/internal/usertoken"
	"cinelog/internal/util"
	"cinelog/pkg/domain"
	"cinelog/services/api/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	Redis                      *redis.Client
	TrustedProxies             *util.TrustedProxies
	CORSAllowedOrigins         []string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	PasswordRateLimitPerMinute int
}

// Server exposes the REST API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	trusted         *util.TrustedProxies
	corsOrigins     []string
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	passwordLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client is required for rate limiting")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	passwordLimit := cfg.PasswordRateLimitPerMinute
	if passwordLimit <= 0 {
		passwordLimit = 10
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "cinelog:api:ratelimit:"+name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	passwordLimiter, err := newLimiter("password", passwordLimit)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		trusted:         cfg.TrustedProxies,
		corsOrigins:     cfg.CORSAllowedOrigins,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
		passwordLimiter: passwordLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// movies
	s.mux.HandleFunc("GET /api/movies", s.handleListMovies)
	s.mux.HandleFunc("GET /api/movies/genres", s.handleGenres)
	s.mux.HandleFunc("GET /api/movies/{id}", s.handleMovieDetail)
	s.mux.HandleFunc("GET /api/movies/{id}/similar", s.handleSimilarMovies)
	s.mux.HandleFunc("GET /api/movies/{id}/reviews", s.handleMovieReviews)
	s.mux.Handle("POST /api/movies/{id}/reviews", s.authenticated(s.handleCreateReview))

	// reviews
	s.mux.HandleFunc("GET /api/reviews/{id}", s.handleGetReview)
	s.mux.Handle("PUT /api/reviews/{id}", s.authenticated(s.handleUpdateReview))
	s.mux.Handle("DELETE /api/reviews/{id}", s.authenticated(s.handleDeleteReview))
	s.mux.Handle("POST /api/reviews/{id}/helpful", s.authenticated(s.handleVote))
	s.mux.Handle("DELETE /api/reviews/{id}/helpful", s.authenticated(s.handleRetractVote))
	s.mux.Handle("POST /api/reviews/{id}/reply", s.authenticated(s.handleAddReply))
	s.mux.Handle("PUT /api/reviews/reply/{reviewId}/{replyId}", s.authenticated(s.handleUpdateReply))
	s.mux.Handle("DELETE /api/reviews/reply/{reviewId}/{replyId}", s.authenticated(s.handleDeleteReply))
	s.mux.HandleFunc("GET /api/reviews/movie/{movieId}", s.handleMovieReviews)
	s.mux.HandleFunc("GET /api/reviews/user/{userId}", s.handleUserReviews)

	// users
	s.mux.HandleFunc("GET /api/users/{id}", s.handleProfile)
	s.mux.HandleFunc("GET /api/users/{id}/reviews", s.handleUserReviews)
	s.mux.HandleFunc("GET /api/users/{id}/following", s.handleFollowing)
	s.mux.HandleFunc("GET /api/users/{id}/followers", s.handleFollowers)
	// POST /api/users/{id}/follow and POST /api/users/{list}/{movieId}
	// overlap, so one pattern serves both.
	s.mux.Handle("POST /api/users/{first}/{second}", s.authenticated(s.handleUserAction))

	// auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("GET /api/auth/me", s.authenticated(s.handleMe))
	s.mux.Handle("PUT /api/auth/profile", s.authenticated(s.handleUpdateProfile))
	s.mux.Handle("PUT /api/auth/change-password", s.authenticated(s.handleChangePassword))
	s.mux.Handle("POST /api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("POST /api/auth/avatar", s.authenticated(s.handleUploadAvatar))

	// admin
	s.mux.Handle("POST /api/admin/users/{id}/reconcile", s.adminOnly(s.handleAdminReconcile))
	s.mux.Handle("PUT /api/admin/users/{id}/status", s.adminOnly(s.handleAdminUserStatus))
	s.mux.Handle("GET /api/admin/jobs/{id}", s.adminOnly(s.handleAdminJob))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

type claimsKey struct{}

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, ok := s.authorize(w, r, "api.authorize")
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next(w, r.WithContext(ctx), user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, ok := s.authorize(w, r, "api.admin.authorize")
		if !ok {
			return
		}
		if !user.IsAdmin() {
			s.audit(r, "api.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next(w, r.WithContext(ctx), user)
	})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request, event string) (domain.User, usertoken.Claims, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, event, "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return domain.User{}, usertoken.Claims{}, false
	}
	user, claims, err := s.app.Authenticate(r.Context(), token)
	if err != nil {
		s.audit(r, event, "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return domain.User{}, usertoken.Claims{}, false
	}
	s.audit(r, event, "success", "user_id", user.ID)
	return user, claims, true
}

func claimsFromRequest(r *http.Request) (usertoken.Claims, bool) {
	claims, ok := r.Context().Value(claimsKey{}).(usertoken.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeAppError maps app errors to statuses. Unexpected errors are logged
// and reported without detail.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrSelfReference):
		writeError(w, http.StatusBadRequest, publicMessage(err, app.ErrSelfReference))
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrConflict):
		writeError(w, http.StatusConflict, publicMessage(err, app.ErrConflict))
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, publicMessage(err, app.ErrForbidden))
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, publicMessage(err, app.ErrUnavailable))
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", util.RequestIDFromRequest(r),
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// publicMessage strips the sentinel prefix from a wrapped error.
func publicMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func pageParams(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	if page, ok = queryInt(w, r, "page"); !ok {
		return 0, 0, false
	}
	if limit, ok = queryInt(w, r, "limit"); !ok {
		return 0, 0, false
	}
	return page, limit, true
}

// paginationJSON renders a page descriptor with the total under totalKey.
func paginationJSON(p app.Pagination, totalKey string) map[string]any {
	return map[string]any{
		"currentPage": p.CurrentPage,
		"totalPages":  p.TotalPages,
		totalKey:      p.Total,
		"hasNext":     p.HasNext,
		"hasPrev":     p.HasPrev,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + s.clientIP(r)
	decision := limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}
