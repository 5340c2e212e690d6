package storage

import (
	"context"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Events() events.Repository
	RSVPs() rsvps.Repository
	Reviews() reviews.Repository
	Users() users.Repository

	Ping(ctx context.Context) error
	// SchemaVersion reports the applied migration version and whether the
	// last migration was left half-applied.
	SchemaVersion(ctx context.Context) (version uint, dirty bool, err error)
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
