package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type RSVPRepository struct {
	conn
}

const rsvpColumns = `
SELECT r.id, r.event_id, e.title, r.user_id::text, u.username, r.status, r.created_at, r.updated_at
  FROM rsvps r
  JOIN events e ON e.id = r.event_id
  JOIN users u ON u.id = r.user_id`

// Upsert inserts or updates the (event, user) RSVP in one statement. xmax is
// zero only for freshly inserted tuples, which tells the two cases apart.
func (r *RSVPRepository) Upsert(ctx context.Context, params rsvps.UpsertParams) (rsvp *rsvps.RSVP, created bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("upsert_rsvp", start, err) }()

	var id string
	err = r.queryer().QueryRow(ctx, `
INSERT INTO rsvps (id, event_id, user_id, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, user_id)
DO UPDATE SET status = EXCLUDED.status, updated_at = now()
RETURNING id, (xmax = 0) AS inserted`,
		params.ID, params.EventID, params.UserID, string(params.Status),
	).Scan(&id, &created)
	if isForeignKeyViolation(err) {
		return nil, false, events.ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("upsert rsvp: %w", err)
	}

	rsvp, err = r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return rsvp, created, nil
}

func (r *RSVPRepository) ListByUser(ctx context.Context, userID string, pagination rsvps.Pagination) (result rsvps.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_rsvps", start, err) }()

	queryer := r.queryer()
	if err := queryer.QueryRow(ctx, `SELECT COUNT(*) FROM rsvps WHERE user_id::text = $1`, userID).Scan(&result.Total); err != nil {
		return rsvps.ListResult{}, fmt.Errorf("count rsvps: %w", err)
	}

	rows, err := queryer.Query(ctx, rsvpColumns+`
 WHERE r.user_id::text = $1
 ORDER BY r.created_at DESC, r.id DESC
 LIMIT $2 OFFSET $3`, userID, limitOrDefault(pagination.Limit), pagination.Offset)
	if err != nil {
		return rsvps.ListResult{}, fmt.Errorf("list rsvps: %w", err)
	}
	defer rows.Close()

	result.RSVPs = []rsvps.RSVP{}
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return rsvps.ListResult{}, fmt.Errorf("scan rsvp: %w", err)
		}
		result.RSVPs = append(result.RSVPs, *rsvp)
	}
	if err := rows.Err(); err != nil {
		return rsvps.ListResult{}, fmt.Errorf("iterate rsvps: %w", err)
	}
	return result, nil
}

func (r *RSVPRepository) Get(ctx context.Context, id string) (rsvp *rsvps.RSVP, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_rsvp", start, err) }()

	rsvp, err = scanRSVP(r.queryer().QueryRow(ctx, rsvpColumns+"\n WHERE r.id = $1", id))
	if isNoRows(err) {
		return nil, rsvps.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rsvp: %w", err)
	}
	return rsvp, nil
}

func (r *RSVPRepository) UpdateStatus(ctx context.Context, id string, status rsvps.Status) (rsvp *rsvps.RSVP, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_rsvp", start, err) }()

	tag, err := r.queryer().Exec(ctx, `UPDATE rsvps SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return nil, fmt.Errorf("update rsvp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, rsvps.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *RSVPRepository) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_rsvp", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM rsvps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rsvp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rsvps.ErrNotFound
	}
	return nil
}

// HasRSVP reports whether the user has any RSVP on the event, whatever its status.
func (r *RSVPRepository) HasRSVP(ctx context.Context, eventID, userID string) (exists bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("has_rsvp", start, err) }()

	err = r.queryer().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rsvps WHERE event_id = $1 AND user_id::text = $2)`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rsvp: %w", err)
	}
	return exists, nil
}

func scanRSVP(row pgx.Row) (*rsvps.RSVP, error) {
	var rsvp rsvps.RSVP
	var status string
	err := row.Scan(
		&rsvp.ID,
		&rsvp.EventID,
		&rsvp.EventTitle,
		&rsvp.UserID,
		&rsvp.Username,
		&status,
		&rsvp.CreatedAt,
		&rsvp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rsvp.Status = rsvps.Status(status)
	return &rsvp, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}
