// Package access decides whether an actor may read or change an event, RSVP
// or review.
//
// Rules are expressed as Predicates. An event is readable when it is public,
// when the actor organizes it, or when the actor has an RSVP on it:
//
//	EventRead(participants) == AnyOf(PublicReadable, OwnerOnly, ParticipantOnly{participants})
//
// Mutations of events, RSVPs and reviews are OwnerOnly.
package access

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
)

// Actor is the caller of an operation. The zero value is an anonymous caller.
type Actor struct {
	UserID   string
	Username string
}

// Authenticated reports whether the actor carries a user identity.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// Target describes the resource a predicate is evaluated against.
type Target struct {
	// EventID is the event the resource belongs to (or the event itself).
	EventID string
	// OwnerID is the organizer of an event or the author of an RSVP/review.
	OwnerID string
	// Public is the event's visibility flag.
	Public bool
}

// Predicate grants or denies a capability for actor on target.
type Predicate interface {
	Allows(ctx context.Context, actor Actor, target Target) (bool, error)
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(ctx context.Context, actor Actor, target Target) (bool, error)

func (f PredicateFunc) Allows(ctx context.Context, actor Actor, target Target) (bool, error) {
	return f(ctx, actor, target)
}

// PublicReadable allows anyone, including anonymous actors, when the target is public.
var PublicReadable Predicate = PredicateFunc(func(_ context.Context, _ Actor, target Target) (bool, error) {
	return target.Public, nil
})

// OwnerOnly allows the owning user.
var OwnerOnly Predicate = PredicateFunc(func(_ context.Context, actor Actor, target Target) (bool, error) {
	return actor.Authenticated() && target.OwnerID != "" && actor.UserID == target.OwnerID, nil
})

// ParticipantLookup answers whether a user holds an RSVP on an event.
type ParticipantLookup interface {
	HasRSVP(ctx context.Context, eventID, userID string) (bool, error)
}

// ParticipantOnly allows actors with an RSVP on the target event.
type ParticipantOnly struct {
	Participants ParticipantLookup
}

func (p ParticipantOnly) Allows(ctx context.Context, actor Actor, target Target) (bool, error) {
	if !actor.Authenticated() || target.EventID == "" || p.Participants == nil {
		return false, nil
	}
	return p.Participants.HasRSVP(ctx, target.EventID, actor.UserID)
}

// AnyOf allows when at least one predicate allows. Predicates are evaluated
// in order and evaluation stops at the first grant.
func AnyOf(predicates ...Predicate) Predicate {
	return PredicateFunc(func(ctx context.Context, actor Actor, target Target) (bool, error) {
		for _, p := range predicates {
			ok, err := p.Allows(ctx, actor, target)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// EventRead is the visibility rule for events.
func EventRead(participants ParticipantLookup) Predicate {
	return AnyOf(PublicReadable, OwnerOnly, ParticipantOnly{Participants: participants})
}

// Check returns ErrUnauthenticated for anonymous actors that are denied and
// ErrForbidden for authenticated ones.
func Check(ctx context.Context, p Predicate, actor Actor, target Target) error {
	ok, err := p.Allows(ctx, actor, target)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	return ErrForbidden
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor stores the authenticated actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor stored in ctx, or an anonymous actor.
func ActorFrom(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey).(Actor); ok {
		return actor
	}
	return Actor{}
}
