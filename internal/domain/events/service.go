package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/ids"
	"github.com/Togather-Foundation/gatherings/internal/sanitize"
	"github.com/Togather-Foundation/gatherings/internal/validation"
)

// Input is the writable representation of an event. Nil fields are left
// unchanged by partial updates and are required where noted otherwise.
type Input struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	IsPublic    *bool      `json:"is_public"`
}

const msgEndBeforeStart = "End time must be after start time"

type Service struct {
	repo Repository
	read access.Predicate
}

func NewService(repo Repository, participants access.ParticipantLookup) *Service {
	return &Service{repo: repo, read: access.EventRead(participants)}
}

// Target returns the access-policy view of the event.
func (e Event) Target() access.Target {
	return access.Target{EventID: e.ID, OwnerID: e.Organizer.ID, Public: e.IsPublic}
}

// List returns the events actor may read that match filters.
func (s *Service) List(ctx context.Context, actor access.Actor, filters Filters, pagination Pagination) (ListResult, error) {
	filters.ViewerID = actor.UserID
	return s.repo.List(ctx, filters, pagination)
}

// Get returns the event when actor may read it. Events the actor cannot see
// are reported as ErrNotFound so their existence is not disclosed.
func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (*Event, error) {
	event, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.read.Allows(ctx, actor, event.Target())
	if err != nil {
		return nil, fmt.Errorf("check event visibility: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return event, nil
}

func (s *Service) Create(ctx context.Context, actor access.Actor, in Input) (*Event, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	in = sanitizeInput(in)
	if err := validateInput(in, true); err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	return s.repo.Create(ctx, CreateParams{
		ID:          id,
		Title:       *in.Title,
		Description: deref(in.Description),
		OrganizerID: actor.UserID,
		Location:    deref(in.Location),
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		IsPublic:    isPublic,
	})
}

// Update applies in to the event. With partial set, omitted fields keep
// their current values; otherwise title, start_time and end_time are required.
func (s *Service) Update(ctx context.Context, actor access.Actor, id string, in Input, partial bool) (*Event, error) {
	event, err := s.authorizeWrite(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in = sanitizeInput(in)
	if err := validateInput(in, !partial); err != nil {
		return nil, err
	}

	params := UpdateParams{
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		IsPublic:    event.IsPublic,
	}
	if in.Title != nil {
		params.Title = *in.Title
	}
	if in.Description != nil {
		params.Description = *in.Description
	} else if !partial {
		params.Description = ""
	}
	if in.Location != nil {
		params.Location = *in.Location
	} else if !partial {
		params.Location = ""
	}
	if in.StartTime != nil {
		params.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		params.EndTime = in.EndTime.UTC()
	}
	if in.IsPublic != nil {
		params.IsPublic = *in.IsPublic
	}
	if !params.EndTime.After(params.StartTime) {
		return nil, validation.New("end_time", msgEndBeforeStart)
	}

	return s.repo.Update(ctx, event.ID, params)
}

// Delete removes the event together with its RSVPs and reviews.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	event, err := s.authorizeWrite(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, event.ID)
}

// authorizeWrite loads the event and applies the organizer-only rule.
// Actors that cannot even read the event get ErrNotFound.
func (s *Service) authorizeWrite(ctx context.Context, actor access.Actor, id string) (*Event, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	event, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(ctx, access.OwnerOnly, actor, event.Target()); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) find(ctx context.Context, id string) (*Event, error) {
	normalized, err := ids.NormalizeULID(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, normalized)
}

func sanitizeInput(in Input) Input {
	in.Title = sanitize.TextPtr(in.Title)
	in.Description = sanitize.HTMLPtr(in.Description)
	in.Location = sanitize.TextPtr(in.Location)
	return in
}

func validateInput(in Input, full bool) error {
	fields := validation.FieldErrors{}
	if err := validation.Struct(in, nil); err != nil {
		fe, ok := validation.As(err)
		if !ok {
			return err
		}
		fields = fe
	}
	if full {
		if in.Title == nil || *in.Title == "" {
			fields.Add("title", "This field is required.")
		}
		if in.StartTime == nil {
			fields.Add("start_time", "This field is required.")
		}
		if in.EndTime == nil {
			fields.Add("end_time", "This field is required.")
		}
	} else if in.Title != nil && *in.Title == "" {
		fields.Add("title", "This field may not be blank.")
	}
	if in.StartTime != nil && in.EndTime != nil && !in.EndTime.After(*in.StartTime) {
		fields.Add("end_time", msgEndBeforeStart)
	}
	return fields.Err()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
