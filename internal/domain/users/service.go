package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/auth"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/ids"
	"github.com/Togather-Foundation/gatherings/internal/sanitize"
	"github.com/Togather-Foundation/gatherings/internal/validation"
	"github.com/rs/zerolog"
)

// Error types for user domain operations
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 characters")
	ErrPasswordNumeric    = errors.New("password cannot be entirely numeric")
)

const (
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 8

	// MaxPasswordLength is the bcrypt input limit
	MaxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// ProfileInput is the writable part of a profile. Nil fields are left
// unchanged by partial updates and cleared by full ones.
type ProfileInput struct {
	FirstName      *string `json:"first_name" validate:"omitempty,max=150"`
	LastName       *string `json:"last_name" validate:"omitempty,max=150"`
	Bio            *string `json:"bio" validate:"omitempty,max=5000"`
	Location       *string `json:"location" validate:"omitempty,max=255"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,httpurl,max=500"`
}

// Service handles account registration, authentication and profiles.
type Service struct {
	repo        Repository
	auditLogger *audit.Logger
	logger      zerolog.Logger
}

// NewService creates a new user service instance
func NewService(repo Repository, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "users").Logger(),
	}
}

// Register creates an account and provisions its profile in one
// transaction. Either both rows exist afterwards or neither does.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = sanitize.Text(in.FirstName)
	in.LastName = sanitize.Text(in.LastName)

	fields := validation.FieldErrors{}
	if err := validation.Struct(in, nil); err != nil {
		fe, ok := validation.As(err)
		if !ok {
			return nil, err
		}
		fields = fe
	}
	if in.Username != "" && !usernamePattern.MatchString(in.Username) {
		fields.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			fields.Add("password", err.Error())
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *User
	err = s.repo.WithTx(ctx, func(repo Repository) error {
		user, err := repo.CreateUser(ctx, CreateUserParams{
			ID:           ids.NewUUID(),
			Username:     in.Username,
			Email:        in.Email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		if err := repo.ProvisionProfile(ctx, user.ID); err != nil {
			return fmt.Errorf("provision profile: %w", err)
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogSuccess("user.registered", created.Username, "user", created.ID, "", nil)
	s.logger.Info().Str("user_id", created.ID).Msg("user registered")
	return created, nil
}

// Authenticate checks credentials. Unknown users, inactive users and wrong
// passwords all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

// ActiveUser returns the user behind a refresh token, rejecting accounts that
// were deactivated after the token was issued.
func (s *Service) ActiveUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetProfile returns the actor's own profile.
func (s *Service) GetProfile(ctx context.Context, actor access.Actor) (*Profile, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	return s.repo.GetProfile(ctx, actor.UserID)
}

// UpdateProfile edits the actor's own profile.
func (s *Service) UpdateProfile(ctx context.Context, actor access.Actor, in ProfileInput, partial bool) (*Profile, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	in.FirstName = sanitize.TextPtr(in.FirstName)
	in.LastName = sanitize.TextPtr(in.LastName)
	in.Bio = sanitize.HTMLPtr(in.Bio)
	in.Location = sanitize.TextPtr(in.Location)
	if in.ProfilePicture != nil {
		trimmed := strings.TrimSpace(*in.ProfilePicture)
		in.ProfilePicture = &trimmed
	}
	if err := validation.Struct(in, nil); err != nil {
		return nil, err
	}

	current, err := s.repo.GetProfile(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	update := ProfileUpdate{
		FirstName:      pick(in.FirstName, current.User.FirstName, partial),
		LastName:       pick(in.LastName, current.User.LastName, partial),
		Bio:            pick(in.Bio, current.Bio, partial),
		Location:       pick(in.Location, current.Location, partial),
		ProfilePicture: pick(in.ProfilePicture, current.ProfilePicture, partial),
	}
	return s.repo.UpdateProfile(ctx, actor.UserID, update)
}

func pick(value *string, current string, partial bool) string {
	if value != nil {
		return *value
	}
	if partial {
		return current
	}
	return ""
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if strings.Trim(password, "0123456789") == "" {
		return ErrPasswordNumeric
	}
	return nil
}
