package events

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

// Person is the public view of a user attached to an event.
type Person struct {
	ID       string
	Username string
}

type Event struct {
	ID            string
	Title         string
	Description   string
	Organizer     Person
	Location      string
	StartTime     time.Time
	EndTime       time.Time
	IsPublic      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RSVPCount     int
	AverageRating float64
}

type CreateParams struct {
	ID          string
	Title       string
	Description string
	OrganizerID string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	IsPublic    bool
}

// UpdateParams carries the full replacement state of an event's mutable fields.
type UpdateParams struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	IsPublic    bool
}

// Filters narrows an event listing. ViewerID limits results to events the
// viewer may read; an empty ViewerID lists public events only.
type Filters struct {
	ViewerID    string
	IsPublic    *bool
	Organizer   string
	Search      string
	Ordering    Ordering
	StartAfter  *time.Time
	StartBefore *time.Time
}

type Pagination struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Events []Event
	Total  int
}

type Repository interface {
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	Get(ctx context.Context, id string) (*Event, error)
	Create(ctx context.Context, params CreateParams) (*Event, error)
	Update(ctx context.Context, id string, params UpdateParams) (*Event, error)
	Delete(ctx context.Context, id string) error
}
