package handlers

import (
	"net/http"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/api/pagination"
	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
)

type EventsHandler struct {
	Events  *events.Service
	RSVPs   *rsvps.Service
	Reviews *reviews.Service
	Audit   *audit.Logger
	Env     string
	BaseURL string
	// Now anchors relative date filters; defaults to time.Now.
	Now func() time.Time
}

func NewEventsHandler(eventService *events.Service, rsvpService *rsvps.Service, reviewService *reviews.Service, auditLogger *audit.Logger, env, baseURL string) *EventsHandler {
	return &EventsHandler{
		Events:  eventService,
		RSVPs:   rsvpService,
		Reviews: reviewService,
		Audit:   auditLogger,
		Env:     env,
		BaseURL: baseURL,
		Now:     time.Now,
	}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	filters, err := events.ParseFilters(r.URL.Query(), h.now())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	result, err := h.Events.List(r.Context(), access.ActorFrom(r.Context()), filters, events.Pagination{
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, pagination.NewEnvelope(r, h.BaseURL, page, result.Total, mapSlice(result.Events, toEventJSON)))
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.Input
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	event, err := h.Events.Create(r.Context(), access.ActorFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	metrics.EventsCreated.Inc()
	h.Audit.LogFromRequest(r, "event.created", "event", event.ID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusCreated, toEventJSON(*event))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Events.Get(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventJSON(*event))
}

// Replace handles PUT.
func (h *EventsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch handles PATCH.
func (h *EventsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *EventsHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	var input events.Input
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	event, err := h.Events.Update(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"), input, partial)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "event.updated", "event", event.ID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, toEventJSON(*event))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.Events.Delete(r.Context(), access.ActorFrom(r.Context()), id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "event.deleted", "event", id, audit.StatusSuccess, nil)
	w.WriteHeader(http.StatusNoContent)
}

type rsvpActionRequest struct {
	Status string `json:"status"`
}

// RSVP records the caller's attendance for the event in the path. Omitting
// status means Going.
func (h *EventsHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	var input rsvpActionRequest
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	rsvp, created, err := h.RSVPs.Upsert(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"), input.Status)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	metrics.RSVPUpserts.WithLabelValues(upsertResult(created)).Inc()
	writeJSON(w, http.StatusOK, toRSVPJSON(*rsvp))
}

// ListReviews returns the reviews of a readable event.
func (h *EventsHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	result, err := h.Reviews.ListForEvent(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"), reviews.Pagination{
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, pagination.NewEnvelope(r, h.BaseURL, page, result.Total, mapSlice(result.Reviews, toReviewJSON)))
}

func (h *EventsHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func upsertResult(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}
