package tools

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultListSize = 20
	maxListSize     = 100
)

// EventTools exposes read-only event queries to agents. Agents act as
// anonymous callers, so only public events are reachable.
type EventTools struct {
	eventsService *events.Service
	baseURL       string
	now           func() time.Time
}

func NewEventTools(eventsService *events.Service, baseURL string) *EventTools {
	return &EventTools{
		eventsService: eventsService,
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:           time.Now,
	}
}

// ListEventsTool returns the MCP tool definition for listing events.
func (t *EventTools) ListEventsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_events",
		Description: "List public events, newest first unless another ordering is given. Dates accept RFC 3339, YYYY-MM-DD or phrases like \"next friday\".",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"search": map[string]interface{}{
					"type":        "string",
					"description": "Match against title, description and location",
				},
				"organizer": map[string]interface{}{
					"type":        "string",
					"description": "Organizer username",
				},
				"start_after": map[string]interface{}{
					"type":        "string",
					"description": "Only events starting on or after this date",
				},
				"start_before": map[string]interface{}{
					"type":        "string",
					"description": "Only events starting on or before this date",
				},
				"ordering": map[string]interface{}{
					"type":        "string",
					"description": "start_time, created_at or title, prefixed with - for descending",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of events to return (default: 20, max: 100)",
					"default":     defaultListSize,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of events to skip",
				},
			},
		},
	}
}

// ListEventsHandler handles the list_events tool call.
func (t *EventTools) ListEventsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t == nil || t.eventsService == nil {
		return mcp.NewToolResultError("events service not configured"), nil
	}

	args := struct {
		Search      string `json:"search"`
		Organizer   string `json:"organizer"`
		StartAfter  string `json:"start_after"`
		StartBefore string `json:"start_before"`
		Ordering    string `json:"ordering"`
		Limit       int    `json:"limit"`
		Offset      int    `json:"offset"`
	}{
		Limit: defaultListSize,
	}
	if err := decodeArguments(request, &args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}

	values := url.Values{}
	setTrimmed(values, "search", args.Search)
	setTrimmed(values, "organizer", args.Organizer)
	setTrimmed(values, "start_after", args.StartAfter)
	setTrimmed(values, "start_before", args.StartBefore)
	setTrimmed(values, "ordering", args.Ordering)

	filters, err := events.ParseFilters(values, t.now())
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid filters", err), nil
	}
	// Agents never see private events, whatever they ask for.
	public := true
	filters.IsPublic = &public

	limit := args.Limit
	if limit <= 0 {
		limit = defaultListSize
	}
	limit = min(limit, maxListSize)
	offset := max(args.Offset, 0)

	result, err := t.eventsService.List(ctx, access.Actor{}, filters, events.Pagination{Limit: limit, Offset: offset})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to list events", err), nil
	}

	items := make([]map[string]any, 0, len(result.Events))
	for _, event := range result.Events {
		items = append(items, buildEventPayload(event, t.baseURL))
	}

	response := map[string]any{
		"count": result.Total,
		"items": items,
	}
	if next := offset + limit; next < result.Total {
		response["next_offset"] = next
	}
	return toolResultJSON(response)
}

// GetEventTool returns the MCP tool definition for getting a single event by ID.
func (t *EventTools) GetEventTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_event",
		Description: "Get a public event by its id, including RSVP count and average rating.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "The ULID of the event to retrieve",
				},
			},
			Required: []string{"id"},
		},
	}
}

// GetEventHandler handles the get_event tool call.
func (t *EventTools) GetEventHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t == nil || t.eventsService == nil {
		return mcp.NewToolResultError("events service not configured"), nil
	}

	args := struct {
		ID string `json:"id"`
	}{}
	if err := decodeArguments(request, &args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	id := strings.TrimSpace(args.ID)
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	event, err := t.eventsService.Get(ctx, access.Actor{}, id)
	if errors.Is(err, events.ErrNotFound) {
		return mcp.NewToolResultErrorf("event not found: %s", id), nil
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to get event", err), nil
	}

	return toolResultJSON(buildEventPayload(*event, t.baseURL))
}

func buildEventPayload(event events.Event, baseURL string) map[string]any {
	payload := map[string]any{
		"id":             event.ID,
		"title":          event.Title,
		"description":    event.Description,
		"organizer":      event.Organizer.Username,
		"location":       event.Location,
		"start_time":     event.StartTime.UTC().Format(time.RFC3339),
		"end_time":       event.EndTime.UTC().Format(time.RFC3339),
		"rsvp_count":     event.RSVPCount,
		"average_rating": event.AverageRating,
	}
	if uri := buildEventURI(baseURL, event.ID); uri != "" {
		payload["url"] = uri
	}
	return payload
}

func buildEventURI(baseURL, id string) string {
	if baseURL == "" || id == "" {
		return ""
	}
	return baseURL + "/api/events/" + url.PathEscape(id) + "/"
}

func setTrimmed(values url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		values.Set(key, value)
	}
}

