package users

import (
	"context"
	"strings"
	"time"
)

type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Profile holds display metadata for a user. It is created together with the
// account and never carries security-relevant data.
type Profile struct {
	User           User
	Bio            string
	Location       string
	ProfilePicture string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateUserParams struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
}

type ProfileUpdate struct {
	FirstName      string
	LastName       string
	Bio            string
	Location       string
	ProfilePicture string
}

// Repository persists accounts and profiles. WithTx runs fn against a
// repository bound to a single transaction.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	ProvisionProfile(ctx context.Context, userID string) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error)
	WithTx(ctx context.Context, fn func(Repository) error) error
}
