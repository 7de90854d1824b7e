package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/yourusername/userbase/internal/apperr"
	"github.com/yourusername/userbase/internal/config"
	"github.com/yourusername/userbase/internal/http/respond"
	"github.com/yourusername/userbase/internal/middleware"
	"github.com/yourusername/userbase/internal/models/dto"
	"github.com/yourusername/userbase/internal/users"
)

const (
	accessTokenCookie  = middleware.AccessTokenCookie
	refreshTokenCookie = "session_token"

	maxBodyBytes = 16 << 10
)

// UserHandler owns the /api/users routes.
type UserHandler struct {
	service *users.Service
	cfg     *config.Config
}

// NewUserHandler constructs the handler.
func NewUserHandler(service *users.Service, cfg *config.Config) *UserHandler {
	return &UserHandler{service: service, cfg: cfg}
}

// Register attaches user routes to the mux. Routes mutating the current
// account go through the auth guard.
func (h *UserHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/users/register", h.handleRegister)
	mux.HandleFunc("/api/users/login", h.handleLogin)
	mux.HandleFunc("/api/users/tokens/refresh", h.handleRefresh)
	mux.Handle("/api/users/logout", h.authenticated(h.handleLogout))
	mux.Handle("/api/users/profile", h.authenticated(h.handleProfile))
	mux.Handle("/api/users/password", h.authenticated(h.handleChangePassword))
	mux.HandleFunc("/api/users/email-verification/send", h.handleSendEmailVerification)
	mux.HandleFunc("/api/users/phone-verification/send", h.handleSendPhoneVerification)
	mux.HandleFunc("/api/users/email-verification/{token}", h.handleVerifyEmail)
	mux.HandleFunc("/api/users/phone-verification", h.handleVerifyPhone)
}

func (h *UserHandler) authenticated(handler http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(h.service, handler)
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.service.Register(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "user created successfully", created)
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, pair, err := h.service.Login(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	h.setAuthCookies(w, pair)
	respond.JSON(w, http.StatusOK, "user logged in successfully", dto.LoginResponse{TokenPair: pair, User: user})
}

func (h *UserHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := refreshTokenFromRequest(w, r)
	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}
	h.setAuthCookies(w, pair)
	respond.JSON(w, http.StatusOK, "tokens refreshed successfully", pair)
}

func (h *UserHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		respondError(w, err)
		return
	}
	h.clearAuthCookies(w)
	respond.JSON(w, http.StatusOK, "user logged out", nil)
}

func (h *UserHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		respond.JSON(w, http.StatusOK, "ok", user)
	case http.MethodPatch:
		var req dto.UpdateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		updated, err := h.service.UpdateProfile(r.Context(), user.ID, req)
		if err != nil {
			respondError(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, "user updated successfully", updated)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), user.ID); err != nil {
			respondError(w, err)
			return
		}
		h.clearAuthCookies(w)
		respond.JSON(w, http.StatusOK, "user deleted successfully", nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *UserHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req dto.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), user.ID, req); err != nil {
		respondError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "password changed successfully", nil)
}

func (h *UserHandler) handleSendEmailVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SendEmailVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.SendEmailVerification(r.Context(), req.Email); err != nil {
		respondError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "verification email sent", nil)
}

func (h *UserHandler) handleSendPhoneVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SendPhoneVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.SendPhoneVerification(r.Context(), req.Phone); err != nil {
		respondError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "verification code sent", nil)
}

func (h *UserHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, err := h.service.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "email verified", user)
}

func (h *UserHandler) handleVerifyPhone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.VerifyPhoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.service.VerifyPhone(r.Context(), req.Token)
	if err != nil {
		respondError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "phone verified", user)
}

func (h *UserHandler) setAuthCookies(w http.ResponseWriter, pair dto.TokenPair) {
	http.SetCookie(w, h.cookie(accessTokenCookie, pair.AccessToken, h.cfg.AccessTokenTTL))
	http.SetCookie(w, h.cookie(refreshTokenCookie, pair.RefreshToken, h.cfg.RefreshTokenTTL))
}

func (h *UserHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(accessTokenCookie, "", -time.Second))
	http.SetCookie(w, h.cookie(refreshTokenCookie, "", -time.Second))
}

func (h *UserHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
	}
}

// refreshTokenFromRequest prefers the session cookie and falls back to the
// request body.
func refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req dto.RefreshRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload", nil)
		return false
	}
	return true
}

// respondError maps an operation error to its HTTP status and envelope.
func respondError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Printf("unexpected error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "something went wrong", nil)
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindBadRequest:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInternal:
		log.Printf("internal error: %s: %v", appErr.Message, appErr.Unwrap())
	}

	var details any
	if len(appErr.Details) > 0 {
		details = appErr.Details
	}
	respond.Error(w, status, appErr.Message, details)
}
