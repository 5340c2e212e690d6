package handlers

import (
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/gatherings/internal/api/pagination"
	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
)

// ReviewsHandler serves the caller's own reviews.
type ReviewsHandler struct {
	Service *reviews.Service
	Audit   *audit.Logger
	Env     string
	BaseURL string
}

func NewReviewsHandler(service *reviews.Service, auditLogger *audit.Logger, env, baseURL string) *ReviewsHandler {
	return &ReviewsHandler{Service: service, Audit: auditLogger, Env: env, BaseURL: baseURL}
}

func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	result, err := h.Service.List(r.Context(), access.ActorFrom(r.Context()), reviews.Pagination{
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, pagination.NewEnvelope(r, h.BaseURL, page, result.Total, mapSlice(result.Reviews, toReviewJSON)))
}

func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input reviews.Input
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	review, err := h.Service.Create(r.Context(), access.ActorFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	metrics.ReviewsCreated.WithLabelValues(strconv.Itoa(review.Rating)).Inc()
	h.Audit.LogFromRequest(r, "review.created", "review", review.ID, audit.StatusSuccess, map[string]string{"event_id": review.EventID})
	writeJSON(w, http.StatusCreated, toReviewJSON(*review))
}

func (h *ReviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	review, err := h.Service.Get(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toReviewJSON(*review))
}

// Replace handles PUT.
func (h *ReviewsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch handles PATCH.
func (h *ReviewsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *ReviewsHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	var input reviews.Input
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	review, err := h.Service.Update(r.Context(), access.ActorFrom(r.Context()), pathParam(r, "id"), input, partial)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "review.updated", "review", review.ID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, toReviewJSON(*review))
}

func (h *ReviewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.Service.Delete(r.Context(), access.ActorFrom(r.Context()), id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "review.deleted", "review", id, audit.StatusSuccess, nil)
	w.WriteHeader(http.StatusNoContent)
}
