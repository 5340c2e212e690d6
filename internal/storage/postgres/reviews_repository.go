package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type ReviewRepository struct {
	conn
}

const reviewColumns = `
SELECT v.id, v.event_id, v.user_id::text, u.username, v.rating, v.comment, v.created_at, v.updated_at
  FROM reviews v
  JOIN users u ON u.id = v.user_id`

func (r *ReviewRepository) Create(ctx context.Context, params reviews.CreateParams) (review *reviews.Review, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_review", start, err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO reviews (id, event_id, user_id, rating, comment)
VALUES ($1, $2, $3, $4, $5)`,
		params.ID, params.EventID, params.UserID, params.Rating, params.Comment,
	)
	if isForeignKeyViolation(err) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}
	return r.Get(ctx, params.ID)
}

func (r *ReviewRepository) Get(ctx context.Context, id string) (review *reviews.Review, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_review", start, err) }()

	review, err = scanReview(r.queryer().QueryRow(ctx, reviewColumns+"\n WHERE v.id = $1", id))
	if isNoRows(err) {
		return nil, reviews.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

func (r *ReviewRepository) Update(ctx context.Context, id string, rating int, comment string) (review *reviews.Review, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_review", start, err) }()

	tag, err := r.queryer().Exec(ctx,
		`UPDATE reviews SET rating = $2, comment = $3, updated_at = now() WHERE id = $1`,
		id, rating, comment,
	)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, reviews.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_review", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reviews.ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) ListByUser(ctx context.Context, userID string, pagination reviews.Pagination) (reviews.ListResult, error) {
	return r.list(ctx, "list_reviews_by_user", "v.user_id::text = $1", userID, pagination)
}

func (r *ReviewRepository) ListByEvent(ctx context.Context, eventID string, pagination reviews.Pagination) (reviews.ListResult, error) {
	return r.list(ctx, "list_reviews_by_event", "v.event_id = $1", eventID, pagination)
}

func (r *ReviewRepository) list(ctx context.Context, operation, where, arg string, pagination reviews.Pagination) (result reviews.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(operation, start, err) }()

	queryer := r.queryer()
	if err := queryer.QueryRow(ctx, `SELECT COUNT(*) FROM reviews v WHERE `+where, arg).Scan(&result.Total); err != nil {
		return reviews.ListResult{}, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := queryer.Query(ctx, reviewColumns+`
 WHERE `+where+`
 ORDER BY v.created_at DESC, v.id DESC
 LIMIT $2 OFFSET $3`, arg, limitOrDefault(pagination.Limit), pagination.Offset)
	if err != nil {
		return reviews.ListResult{}, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	result.Reviews = []reviews.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return reviews.ListResult{}, fmt.Errorf("scan review: %w", err)
		}
		result.Reviews = append(result.Reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return reviews.ListResult{}, fmt.Errorf("iterate reviews: %w", err)
	}
	return result, nil
}

func scanReview(row pgx.Row) (*reviews.Review, error) {
	var review reviews.Review
	var rating int32
	err := row.Scan(
		&review.ID,
		&review.EventID,
		&review.UserID,
		&review.Username,
		&rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	review.Rating = int(rating)
	return &review, nil
}
