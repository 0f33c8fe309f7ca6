// Package handlers is the HTTP layer.
//
// Handlers stay thin:
//  1. parse the request (JSON body, path values, multipart form)
//  2. call the service
//  3. write the result with pkg.JSON / pkg.Error
//
// They never hold business rules and never touch the database.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/i18n"
	"github.com/khakishop/server/pkg/ratelimit"
	"github.com/khakishop/server/services"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.LoginRateLimiter
	defaultLang  string
}

// NewAuthHandler is the constructor.
// A nil loginLimiter disables login rate limiting.
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.LoginRateLimiter, defaultLang string) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
		defaultLang:  defaultLang,
	}
}

// Login godoc
// POST /api/auth/login
//
// Attempts are limited per client IP. Over the limit the response is 429
// with a Retry-After header; a successful login resets the counter.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		retryAfter := h.loginLimiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			localizerFor(r, h.defaultLang).TWithParams("auth.tooManyAttempts", map[string]string{
				"wait": ratelimit.FormatRetryMessage(retryAfter),
			}))
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}

	pkg.JSON(w, http.StatusOK, tokens)
}

// Refresh godoc
// POST /api/auth/refresh
// Body: { "refresh_token": "..." }
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, tokens)
}

// Logout godoc
// POST /api/auth/logout
// Body: { "refresh_token": "..." }
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me godoc
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	pkg.JSON(w, http.StatusOK, user)
}

// localizerFor picks the response language: ?lang= when supported, then
// Accept-Language, then fallback.
func localizerFor(r *http.Request, fallback string) *i18n.Localizer {
	if lang := r.URL.Query().Get("lang"); i18n.IsSupported(lang) {
		return i18n.NewLocalizer(lang)
	}
	return i18n.NewLocalizer(i18n.DetectLanguage(r.Header.Get("Accept-Language"), fallback))
}

// contextKey keeps context values of this package from colliding with
// string keys of other packages.
type contextKey string

// UserContextKey carries the authenticated *models.User, set by
// middleware.AuthMiddleware.
const UserContextKey contextKey = "user"
