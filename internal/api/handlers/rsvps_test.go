package handlers

import (
	"net/http"
	"testing"

	"github.com/Togather-Foundation/gatherings/internal/api/pagination"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/stretchr/testify/require"
)

func TestRSVPsCreate(t *testing.T) {
	api := newTestAPI(t)
	id := api.createEvent(t, alice, "Open Mic", true)

	create := func(body any) (int, problemBody, rsvpJSON) {
		rec := serve(t, "POST /api/rsvps/", api.rsvps.Create, http.MethodPost, "/api/rsvps/", body, bob)
		if rec.Code >= 400 {
			return rec.Code, decodeBody[problemBody](t, rec), rsvpJSON{}
		}
		return rec.Code, problemBody{}, decodeBody[rsvpJSON](t, rec)
	}

	code, problem, _ := create(map[string]string{"status": "Going"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "This field is required.", problem.Errors["event"])

	code, problem, _ = create(map[string]string{"event": id, "status": "Sure"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, problem.Errors["status"], "Invalid status")

	code, _, _ = create(map[string]string{"event": "01HYX3KQW7ERTV9XNBM2P8QJZZ", "status": "Going"})
	require.Equal(t, http.StatusNotFound, code)

	code, _, created := create(map[string]string{"event": id})
	require.Equal(t, http.StatusCreated, code)
	require.EqualValues(t, "Going", created.Status)
	require.Equal(t, "Open Mic", created.Event.Title)

	code, _, updated := create(map[string]string{"event": id, "status": "Not Going"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, created.ID, updated.ID)
	require.EqualValues(t, "Not Going", updated.Status)
}

func TestRSVPsOwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	id := api.createEvent(t, alice, "Open Mic", true)

	rec := serve(t, "POST /api/rsvps/", api.rsvps.Create, http.MethodPost, "/api/rsvps/", map[string]string{"event": id}, bob)
	require.Equal(t, http.StatusCreated, rec.Code)
	rsvpID := decodeBody[rsvpJSON](t, rec).ID
	path := "/api/rsvps/" + rsvpID + "/"

	// Other users cannot see or touch it.
	require.Equal(t, http.StatusNotFound, serve(t, "GET /api/rsvps/{id}/", api.rsvps.Get, http.MethodGet, path, nil, alice).Code)
	require.Equal(t, http.StatusNotFound, serve(t, "PATCH /api/rsvps/{id}/", api.rsvps.Update, http.MethodPatch, path, map[string]string{"status": "Maybe"}, alice).Code)
	require.Equal(t, http.StatusNotFound, serve(t, "DELETE /api/rsvps/{id}/", api.rsvps.Delete, http.MethodDelete, path, nil, alice).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, "GET /api/rsvps/{id}/", api.rsvps.Get, http.MethodGet, path, nil, access.Actor{}).Code)

	list := serve(t, "GET /api/rsvps/", api.rsvps.List, http.MethodGet, "/api/rsvps/", nil, alice)
	require.Equal(t, 0, decodeBody[pagination.Envelope[rsvpJSON]](t, list).Count)

	rec = serve(t, "PUT /api/rsvps/{id}/", api.rsvps.Update, http.MethodPut, path, map[string]string{"status": "Maybe"}, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, "Maybe", decodeBody[rsvpJSON](t, rec).Status)

	rec = serve(t, "PUT /api/rsvps/{id}/", api.rsvps.Update, http.MethodPut, path, map[string]string{}, bob)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	list = serve(t, "GET /api/rsvps/", api.rsvps.List, http.MethodGet, "/api/rsvps/", nil, bob)
	env := decodeBody[pagination.Envelope[rsvpJSON]](t, list)
	require.Equal(t, 1, env.Count)
	require.Nil(t, env.Next)

	require.Equal(t, http.StatusNoContent, serve(t, "DELETE /api/rsvps/{id}/", api.rsvps.Delete, http.MethodDelete, path, nil, bob).Code)
	require.Equal(t, http.StatusNotFound, serve(t, "GET /api/rsvps/{id}/", api.rsvps.Get, http.MethodGet, path, nil, bob).Code)
}
