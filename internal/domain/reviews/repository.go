package reviews

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("review not found")

type Review struct {
	ID        string
	EventID   string
	UserID    string
	Username  string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateParams struct {
	ID      string
	EventID string
	UserID  string
	Rating  int
	Comment string
}

type Pagination struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Reviews []Review
	Total   int
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Review, error)
	Get(ctx context.Context, id string) (*Review, error)
	Update(ctx context.Context, id string, rating int, comment string) (*Review, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, pagination Pagination) (ListResult, error)
	ListByEvent(ctx context.Context, eventID string, pagination Pagination) (ListResult, error)
}
