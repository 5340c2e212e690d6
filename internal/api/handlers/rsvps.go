package handlers

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/api/pagination"
	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/Togather-Foundation/gatherings/internal/validation"
)

// RSVPsHandler serves the caller's own RSVPs.
type RSVPsHandler struct {
	Service *rsvps.Service
	Audit   *audit.Logger
	Env     string
	BaseURL string
}

func NewRSVPsHandler(service *rsvps.Service, auditLogger *audit.Logger, env, baseURL string) *RSVPsHandler {
	return &RSVPsHandler{Service: service, Audit: auditLogger, Env: env, BaseURL: baseURL}
}

type rsvpRequest struct {
	Event  string `json:"event"`
	Status string `json:"status"`
}

func (h *RSVPsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	result, err := h.Service.List(r.Context(), access.ActorFrom(r.Context()), rsvps.Pagination{
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, pagination.NewEnvelope(r, h.BaseURL, page, result.Total, mapSlice(result.RSVPs, toRSVPJSON)))
}

// Create upserts an RSVP: 201 when it is new, 200 when an existing one was
// overwritten.
func (h *RSVPsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input rsvpRequest
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if strings.TrimSpace(input.Event) == "" {
		writeError(w, r, validation.New("event", "This field is required."), h.Env)
		return
	}

	rsvp, created, err := h.Service.Upsert(r.Context(), access.ActorFrom(r.Context()), input.Event, input.Status)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	result := upsertResult(created)
	metrics.RSVPUpserts.WithLabelValues(result).Inc()
	h.Audit.LogFromRequest(r, "rsvp."+result, "rsvp", rsvp.ID, audit.StatusSuccess, map[string]string{
		"event_id": rsvp.EventID,
		"status":   string(rsvp.Status),
	})

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toRSVPJSON(*rsvp))
}

func (h *RSVPsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rsvp, err := h.Service.Get(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toRSVPJSON(*rsvp))
}

// Update handles PUT and PATCH; status is the only writable field.
func (h *RSVPsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input rsvpRequest
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	rsvp, err := h.Service.UpdateStatus(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"), input.Status)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "rsvp.updated", "rsvp", rsvp.ID, audit.StatusSuccess, map[string]string{"status": string(rsvp.Status)})
	writeJSON(w, http.StatusOK, toRSVPJSON(*rsvp))
}

func (h *RSVPsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.Service.Delete(r.Context(), access.ActorFrom(r.Context()), id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "rsvp.deleted", "rsvp", id, audit.StatusSuccess, nil)
	w.WriteHeader(http.StatusNoContent)
}
