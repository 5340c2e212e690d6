package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type EventRepository struct {
	conn
}

const eventColumns = `
SELECT e.id, e.title, e.description, e.organizer_id::text, u.username, e.location,
       e.start_time, e.end_time, e.is_public, e.created_at, e.updated_at,
       (SELECT COUNT(*) FROM rsvps r WHERE r.event_id = e.id) AS rsvp_count,
       (SELECT COALESCE(AVG(v.rating), 0)::float8 FROM reviews v WHERE v.event_id = e.id) AS average_rating
  FROM events e
  JOIN users u ON u.id = e.organizer_id`

// eventFilters is shared by the list and count queries. $1 is the viewer id;
// an empty viewer sees public events only.
const eventFilters = `
 WHERE (e.is_public
        OR ($1 <> '' AND (e.organizer_id::text = $1
             OR EXISTS (SELECT 1 FROM rsvps r WHERE r.event_id = e.id AND r.user_id::text = $1))))
   AND ($2::boolean IS NULL OR e.is_public = $2::boolean)
   AND ($3 = '' OR u.username = $3 OR e.organizer_id::text = $3)
   AND ($4 = '' OR e.title ILIKE '%' || $4 || '%'
                OR e.description ILIKE '%' || $4 || '%'
                OR e.location ILIKE '%' || $4 || '%'
                OR u.username ILIKE '%' || $4 || '%')
   AND ($5::timestamptz IS NULL OR e.start_time >= $5::timestamptz)
   AND ($6::timestamptz IS NULL OR e.start_time <= $6::timestamptz)`

var orderColumns = map[string]string{
	"start_time": "e.start_time",
	"created_at": "e.created_at",
	"title":      "e.title",
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (result events.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_events", start, err) }()

	field, desc := filters.Ordering.Field()
	column, ok := orderColumns[field]
	if !ok {
		return events.ListResult{}, fmt.Errorf("list events: unsupported ordering %q", field)
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	args := []any{
		filters.ViewerID,
		filters.IsPublic,
		filters.Organizer,
		escapeILIKEPattern(filters.Search),
		filters.StartAfter,
		filters.StartBefore,
	}
	queryer := r.queryer()

	if err := queryer.QueryRow(ctx, `SELECT COUNT(*) FROM events e JOIN users u ON u.id = e.organizer_id`+eventFilters, args...).Scan(&result.Total); err != nil {
		return events.ListResult{}, fmt.Errorf("count events: %w", err)
	}

	limit := limitOrDefault(pagination.Limit)
	query := eventColumns + eventFilters +
		fmt.Sprintf("\n ORDER BY %s %s, e.id %s\n LIMIT $7 OFFSET $8", column, direction, direction)
	rows, err := queryer.Query(ctx, query, append(args, limit, pagination.Offset)...)
	if err != nil {
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result.Events = make([]events.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return events.ListResult{}, fmt.Errorf("scan event: %w", err)
		}
		result.Events = append(result.Events, *event)
	}
	if err := rows.Err(); err != nil {
		return events.ListResult{}, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (event *events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_event", start, err) }()

	event, err = scanEvent(r.queryer().QueryRow(ctx, eventColumns+"\n WHERE e.id = $1", id))
	if isNoRows(err) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (event *events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_event", start, err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO events (id, title, description, organizer_id, location, start_time, end_time, is_public)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		params.ID, params.Title, params.Description, params.OrganizerID, params.Location,
		params.StartTime, params.EndTime, params.IsPublic,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.Get(ctx, params.ID)
}

func (r *EventRepository) Update(ctx context.Context, id string, params events.UpdateParams) (event *events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_event", start, err) }()

	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET title = $2, description = $3, location = $4, start_time = $5, end_time = $6,
       is_public = $7, updated_at = now()
 WHERE id = $1`,
		id, params.Title, params.Description, params.Location, params.StartTime, params.EndTime, params.IsPublic,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, events.ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes the event; RSVPs and reviews go with it via ON DELETE CASCADE.
func (r *EventRepository) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_event", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	var rsvpCount int64
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Organizer.ID,
		&event.Organizer.Username,
		&event.Location,
		&event.StartTime,
		&event.EndTime,
		&event.IsPublic,
		&event.CreatedAt,
		&event.UpdatedAt,
		&rsvpCount,
		&event.AverageRating,
	)
	if err != nil {
		return nil, err
	}
	event.RSVPCount = int(rsvpCount)
	return &event, nil
}
