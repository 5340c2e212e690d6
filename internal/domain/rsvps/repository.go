package rsvps

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("rsvp not found")

type RSVP struct {
	ID         string
	EventID    string
	EventTitle string
	UserID     string
	Username   string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type UpsertParams struct {
	ID      string
	EventID string
	UserID  string
	Status  Status
}

type Pagination struct {
	Limit  int
	Offset int
}

type ListResult struct {
	RSVPs []RSVP
	Total int
}

// Repository persists RSVPs. Upsert must be atomic per (event, user) and
// report whether a new row was inserted.
type Repository interface {
	Upsert(ctx context.Context, params UpsertParams) (*RSVP, bool, error)
	ListByUser(ctx context.Context, userID string, pagination Pagination) (ListResult, error)
	Get(ctx context.Context, id string) (*RSVP, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*RSVP, error)
	Delete(ctx context.Context, id string) error
	HasRSVP(ctx context.Context, eventID, userID string) (bool, error)
}
