package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	Users *users.Service
	Audit *audit.Logger
	Env   string
}

func NewProfileHandler(userService *users.Service, auditLogger *audit.Logger, env string) *ProfileHandler {
	return &ProfileHandler{Users: userService, Audit: auditLogger, Env: env}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Users.GetProfile(r.Context(), access.ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(*profile))
}

// Replace handles PUT.
func (h *ProfileHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch handles PATCH.
func (h *ProfileHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	var input users.ProfileInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	actor := access.ActorFrom(r.Context())
	profile, err := h.Users.UpdateProfile(r.Context(), actor, input, partial)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "profile.updated", "user", actor.UserID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, toProfileJSON(*profile))
}
