package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvents struct {
	items    []events.Event
	filters  events.Filters
	paginate events.Pagination
}

func (s *stubEvents) List(_ context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error) {
	s.filters, s.paginate = filters, pagination
	var out []events.Event
	for _, e := range s.items {
		if filters.IsPublic != nil && e.IsPublic != *filters.IsPublic {
			continue
		}
		out = append(out, e)
	}
	total := len(out)
	start := min(pagination.Offset, total)
	end := min(start+pagination.Limit, total)
	return events.ListResult{Events: out[start:end], Total: total}, nil
}

func (s *stubEvents) Get(_ context.Context, id string) (*events.Event, error) {
	for _, e := range s.items {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, events.ErrNotFound
}

func (s *stubEvents) Create(context.Context, events.CreateParams) (*events.Event, error) {
	return nil, nil
}

func (s *stubEvents) Update(context.Context, string, events.UpdateParams) (*events.Event, error) {
	return nil, nil
}

func (s *stubEvents) Delete(context.Context, string) error { return nil }

var eventStart = time.Date(2026, 6, 5, 19, 0, 0, 0, time.UTC)

func newTools(t *testing.T) (*EventTools, *stubEvents) {
	t.Helper()
	repo := &stubEvents{items: []events.Event{
		{ID: "01J0EVENT00000000000000001", Title: "Open Mic", Organizer: events.Person{ID: "u1", Username: "alice"}, StartTime: eventStart, EndTime: eventStart.Add(2 * time.Hour), IsPublic: true, RSVPCount: 3, AverageRating: 4.5},
		{ID: "01J0EVENT00000000000000002", Title: "Board Games", Organizer: events.Person{ID: "u2", Username: "bob"}, StartTime: eventStart, EndTime: eventStart.Add(time.Hour), IsPublic: true},
		{ID: "01J0EVENT00000000000000003", Title: "Private Dinner", Organizer: events.Person{ID: "u1", Username: "alice"}, StartTime: eventStart, EndTime: eventStart.Add(time.Hour), IsPublic: false},
	}}
	tools := NewEventTools(events.NewService(repo, nil), "https://gatherings.example.org/")
	tools.now = func() time.Time { return eventStart }
	return tools, repo
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", result.Content[0])
	return ""
}

func TestListEvents_PublicOnly(t *testing.T) {
	tools, repo := newTools(t)

	result, err := tools.ListEventsHandler(context.Background(), callRequest("list_events", map[string]any{"limit": 1}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var body struct {
		Count      int              `json:"count"`
		Items      []map[string]any `json:"items"`
		NextOffset *int             `json:"next_offset"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Open Mic", body.Items[0]["title"])
	assert.Equal(t, "alice", body.Items[0]["organizer"])
	assert.Equal(t, "https://gatherings.example.org/api/events/01J0EVENT00000000000000001/", body.Items[0]["url"])
	require.NotNil(t, body.NextOffset)
	assert.Equal(t, 1, *body.NextOffset)

	require.NotNil(t, repo.filters.IsPublic)
	assert.True(t, *repo.filters.IsPublic)
	assert.Empty(t, repo.filters.ViewerID)
}

func TestListEvents_Arguments(t *testing.T) {
	tools, repo := newTools(t)

	result, err := tools.ListEventsHandler(context.Background(), callRequest("list_events", map[string]any{
		"search":      "  mic ",
		"start_after": "2026-06-01",
		"limit":       500,
		"offset":      -3,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "mic", repo.filters.Search)
	require.NotNil(t, repo.filters.StartAfter)
	assert.Equal(t, maxListSize, repo.paginate.Limit)
	assert.Zero(t, repo.paginate.Offset)

	result, err = tools.ListEventsHandler(context.Background(), callRequest("list_events", map[string]any{"ordering": "rsvp_count"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.ListEventsHandler(context.Background(), callRequest("list_events", map[string]any{"limit": "many"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetEvent(t *testing.T) {
	tools, _ := newTools(t)

	result, err := tools.GetEventHandler(context.Background(), callRequest("get_event", map[string]any{"id": "01J0EVENT00000000000000001"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	assert.Equal(t, "Open Mic", payload["title"])
	assert.EqualValues(t, 3, payload["rsvp_count"])
	assert.EqualValues(t, 4.5, payload["average_rating"])
	assert.Equal(t, "2026-06-05T19:00:00Z", payload["start_time"])

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "private event is hidden", args: map[string]any{"id": "01J0EVENT00000000000000003"}},
		{name: "unknown event", args: map[string]any{"id": "01J0EVENT00000000000000009"}},
		{name: "missing id", args: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tools.GetEventHandler(context.Background(), callRequest("get_event", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestBuildEventURI(t *testing.T) {
	assert.Equal(t, "https://x.test/api/events/01ABC/", buildEventURI("https://x.test", "01ABC"))
	assert.Empty(t, buildEventURI("", "01ABC"))
	assert.Empty(t, buildEventURI("https://x.test", ""))
}
