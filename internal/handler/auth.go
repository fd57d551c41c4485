package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/skillfolio/internal/ctxkeys"
	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/service"
)

type authHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *authHandler {
	return &authHandler{authService: authService}
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CSRF hands the double-submit token to clients that cannot read the cookie.
func (h *authHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": ctxkeys.CSRFToken(r.Context())})
}

func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		slog.Warn("registration failed", "error", err)
		handleError(w, r, err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	slog.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("password login failed", "error", err)
		handleError(w, r, err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	slog.Info("user logged in with password", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (h *authHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	token, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		handleError(w, r, err)
		return false
	}
	h.authService.SetJWTCookie(w, token, expiry)
	return true
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.authService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		// Same answer either way so the response does not reveal accounts
		slog.Warn("password reset request failed", "error", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for that address, a reset link is on its way.",
	})
}

// VerifyResetToken lets the client check a link before asking for a new password.
func (h *authHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.authService.ValidateResetToken(r.Context(), r.PathValue("token"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      true,
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.authService.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		slog.Warn("password reset failed", "error", err)
		handleError(w, r, err)
		return
	}

	slog.Info("password reset completed")
	w.WriteHeader(http.StatusNoContent)
}
