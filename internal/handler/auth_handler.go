package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/auth"
	"github.com/prn-tf/fertilizer-advisor/internal/service"
)

// AuthHandler serves signup, login and the current-user endpoint.
type AuthHandler struct {
	authService *service.AuthService
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}
}

type credentialsRequest struct {
	Username *string `json:"username" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type meResponse struct {
	Username string `json:"username"`
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	err := h.authService.Signup(r.Context(), service.SignupInput{
		Username: *req.Username,
		Password: *req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Signup successful"})
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := h.authService.Login(r.Context(), service.LoginInput{
		Username: *req.Username,
		Password: *req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: out.Token, ExpiresAt: out.ExpiresAt})
}

// Me handles GET /me. It must run behind auth.Middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, service.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Username: username})
}
