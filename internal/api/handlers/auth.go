package handlers

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/auth"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/Togather-Foundation/gatherings/internal/validation"
	"github.com/rs/zerolog"
)

// AuthHandler issues accounts and bearer tokens.
type AuthHandler struct {
	Users  *users.Service
	Tokens *auth.JWTManager
	Audit  *audit.Logger
	Env    string
}

func NewAuthHandler(userService *users.Service, tokens *auth.JWTManager, auditLogger *audit.Logger, env string) *AuthHandler {
	return &AuthHandler{Users: userService, Tokens: tokens, Audit: auditLogger, Env: env}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type accessResponse struct {
	Access string `json:"access"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input users.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Register(r.Context(), input)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		writeError(w, r, err, h.Env)
		return
	}

	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	writeJSON(w, http.StatusCreated, toUserJSON(*user))
}

// Token exchanges credentials for an access and refresh token pair.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var input tokenRequest
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	fields := validation.FieldErrors{}
	if strings.TrimSpace(input.Username) == "" {
		fields.Add("username", "This field is required.")
	}
	if input.Password == "" {
		fields.Add("password", "This field is required.")
	}
	if err := fields.Err(); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("token", "failure").Inc()
		h.Audit.LogFromRequest(r, "auth.token", "user", "", audit.StatusFailure, map[string]string{"username": input.Username})
		writeError(w, r, err, h.Env)
		return
	}

	pair, err := h.Tokens.GeneratePair(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	metrics.AuthAttempts.WithLabelValues("token", "success").Inc()
	zerolog.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("token issued")
	writeJSON(w, http.StatusOK, pair)
}

// Refresh issues a new access token for a valid refresh token whose user is
// still active.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if strings.TrimSpace(input.Refresh) == "" {
		writeError(w, r, validation.New("refresh", "This field is required."), h.Env)
		return
	}

	claims, err := h.Tokens.ValidateRefresh(input.Refresh)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		writeError(w, r, err, h.Env)
		return
	}
	user, err := h.Users.ActiveUser(r.Context(), claims.Subject)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		writeError(w, r, err, h.Env)
		return
	}

	access, err := h.Tokens.Generate(user.ID, user.Username, auth.TokenAccess)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	metrics.AuthAttempts.WithLabelValues("refresh", "success").Inc()
	writeJSON(w, http.StatusOK, accessResponse{Access: access})
}
