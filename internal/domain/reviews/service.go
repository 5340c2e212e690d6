package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/ids"
	"github.com/Togather-Foundation/gatherings/internal/sanitize"
	"github.com/Togather-Foundation/gatherings/internal/validation"
)

const (
	MinRating = 1
	MaxRating = 5

	maxCommentLength = 5000
)

var msgRatingRange = fmt.Sprintf("Rating must be between %d and %d", MinRating, MaxRating)

// Input is the writable representation of a review. Rating is kept as a raw
// JSON number so that non-integers are reported as field errors.
type Input struct {
	Event   string       `json:"event"`
	Rating  *json.Number `json:"rating"`
	Comment *string      `json:"comment"`
}

// EventReader resolves events the actor is allowed to read.
type EventReader interface {
	Get(ctx context.Context, actor access.Actor, id string) (*events.Event, error)
}

type Service struct {
	repo   Repository
	events EventReader
}

func NewService(repo Repository, reader EventReader) *Service {
	return &Service{repo: repo, events: reader}
}

// ValidateRating accepts integers in [MinRating, MaxRating].
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return validation.New("rating", msgRatingRange)
	}
	return nil
}

// integralSuffix matches a zero fraction such as ".0" or ".00".
var integralSuffix = regexp.MustCompile(`\.0*$`)

// parseRating accepts integers and integral decimals like 3.0. Anything else
// is reported on fields.
func parseRating(raw *json.Number, fields validation.FieldErrors) int {
	if raw == nil {
		fields.Add("rating", "This field is required.")
		return 0
	}
	digits := integralSuffix.ReplaceAllString(strings.TrimSpace(raw.String()), "")
	value, err := strconv.ParseInt(digits, 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		fields.Add("rating", msgRatingRange)
		return 0
	case err != nil:
		fields.Add("rating", "A valid integer is required.")
		return 0
	case value < MinRating || value > MaxRating:
		fields.Add("rating", msgRatingRange)
		return 0
	}
	return int(value)
}

func parseComment(raw *string, fields validation.FieldErrors) string {
	if raw == nil {
		return ""
	}
	comment := sanitize.HTML(*raw)
	if len(comment) > maxCommentLength {
		fields.Add("comment", fmt.Sprintf("Ensure this field has no more than %d characters.", maxCommentLength))
	}
	return comment
}

// Create stores a review by actor for an event the actor can read.
func (s *Service) Create(ctx context.Context, actor access.Actor, in Input) (*Review, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	fields := validation.FieldErrors{}
	if in.Event == "" {
		fields.Add("event", "This field is required.")
	}
	rating := parseRating(in.Rating, fields)
	comment := parseComment(in.Comment, fields)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	event, err := s.events.Get(ctx, actor, in.Event)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate review id: %w", err)
	}
	return s.repo.Create(ctx, CreateParams{
		ID:      id,
		EventID: event.ID,
		UserID:  actor.UserID,
		Rating:  rating,
		Comment: comment,
	})
}

// List returns only the actor's own reviews.
func (s *Service) List(ctx context.Context, actor access.Actor, pagination Pagination) (ListResult, error) {
	if !actor.Authenticated() {
		return ListResult{}, access.ErrUnauthenticated
	}
	return s.repo.ListByUser(ctx, actor.UserID, pagination)
}

// ListForEvent returns all reviews of an event the actor can read.
func (s *Service) ListForEvent(ctx context.Context, actor access.Actor, eventID string, pagination Pagination) (ListResult, error) {
	if !actor.Authenticated() {
		return ListResult{}, access.ErrUnauthenticated
	}
	event, err := s.events.Get(ctx, actor, eventID)
	if err != nil {
		return ListResult{}, err
	}
	return s.repo.ListByEvent(ctx, event.ID, pagination)
}

func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (*Review, error) {
	return s.owned(ctx, actor, id)
}

// Update changes rating and comment. With partial set, omitted fields keep
// their current values.
func (s *Service) Update(ctx context.Context, actor access.Actor, id string, in Input, partial bool) (*Review, error) {
	review, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	fields := validation.FieldErrors{}
	rating := review.Rating
	if in.Rating != nil || !partial {
		rating = parseRating(in.Rating, fields)
	}
	comment := review.Comment
	if in.Comment != nil || !partial {
		comment = parseComment(in.Comment, fields)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, review.ID, rating, comment)
}

func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	review, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, review.ID)
}

// owned loads a review and applies the author-only rule. Reviews written by
// other users are reported as ErrNotFound.
func (s *Service) owned(ctx context.Context, actor access.Actor, id string) (*Review, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	normalized, err := ids.NormalizeULID(id)
	if err != nil {
		return nil, ErrNotFound
	}
	review, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return nil, err
	}
	err = access.Check(ctx, access.OwnerOnly, actor, access.Target{EventID: review.EventID, OwnerID: review.UserID})
	if errors.Is(err, access.ErrForbidden) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return review, nil
}
