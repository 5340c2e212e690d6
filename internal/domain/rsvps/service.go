package rsvps

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/ids"
)

// EventFinder resolves an event by id without applying visibility rules.
type EventFinder interface {
	Get(ctx context.Context, id string) (*events.Event, error)
}

type Service struct {
	repo   Repository
	events EventFinder
}

func NewService(repo Repository, finder EventFinder) *Service {
	return &Service{repo: repo, events: finder}
}

// Upsert records the actor's status for an event, creating the RSVP when
// none exists and overwriting the status otherwise. An empty status means
// Going. The returned bool is true when a new RSVP was created.
//
// Knowing an event's id is enough to RSVP to it; private events become
// visible to the actor afterwards.
func (s *Service) Upsert(ctx context.Context, actor access.Actor, eventID, status string) (*RSVP, bool, error) {
	if !actor.Authenticated() {
		return nil, false, access.ErrUnauthenticated
	}
	if status == "" {
		status = string(StatusGoing)
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return nil, false, err
	}

	normalized, err := ids.NormalizeULID(eventID)
	if err != nil {
		return nil, false, events.ErrNotFound
	}
	event, err := s.events.Get(ctx, normalized)
	if err != nil {
		return nil, false, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, false, fmt.Errorf("generate rsvp id: %w", err)
	}
	return s.repo.Upsert(ctx, UpsertParams{
		ID:      id,
		EventID: event.ID,
		UserID:  actor.UserID,
		Status:  parsed,
	})
}

// List returns only the actor's own RSVPs.
func (s *Service) List(ctx context.Context, actor access.Actor, pagination Pagination) (ListResult, error) {
	if !actor.Authenticated() {
		return ListResult{}, access.ErrUnauthenticated
	}
	return s.repo.ListByUser(ctx, actor.UserID, pagination)
}

func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (*RSVP, error) {
	return s.owned(ctx, actor, id)
}

// UpdateStatus overwrites the status of one of the actor's RSVPs.
func (s *Service) UpdateStatus(ctx context.Context, actor access.Actor, id, status string) (*RSVP, error) {
	rsvp, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateStatus(ctx, rsvp.ID, parsed)
}

func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	rsvp, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, rsvp.ID)
}

// owned loads an RSVP and applies the owner-only rule. RSVPs of other users
// are reported as ErrNotFound.
func (s *Service) owned(ctx context.Context, actor access.Actor, id string) (*RSVP, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	normalized, err := ids.NormalizeULID(id)
	if err != nil {
		return nil, ErrNotFound
	}
	rsvp, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return nil, err
	}
	err = access.Check(ctx, access.OwnerOnly, actor, access.Target{EventID: rsvp.EventID, OwnerID: rsvp.UserID})
	if errors.Is(err, access.ErrForbidden) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rsvp, nil
}
