package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	conn
}

const userColumns = `
SELECT u.id::text, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_active, u.created_at
  FROM users u`

func (r *UserRepository) CreateUser(ctx context.Context, params users.CreateUserParams) (user *users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_user", start, err) }()

	user, err = scanUser(r.queryer().QueryRow(ctx, `
INSERT INTO users (id, username, email, first_name, last_name, password_hash)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text, username, email, first_name, last_name, password_hash, is_active, created_at`,
		params.ID, params.Username, params.Email, params.FirstName, params.LastName, params.PasswordHash,
	))
	if isUniqueViolation(err) {
		return nil, users.ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// ProvisionProfile creates the empty profile row for a new account. It is a
// no-op when the profile already exists.
func (r *UserRepository) ProvisionProfile(ctx context.Context, userID string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("provision_profile", start, err) }()

	_, err = r.queryer().Exec(ctx,
		`INSERT INTO user_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if isForeignKeyViolation(err) {
		return users.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (user *users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_user", start, err) }()

	user, err = scanUser(r.queryer().QueryRow(ctx, userColumns+"\n WHERE u.id::text = $1", id))
	if isNoRows(err) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (user *users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_user_by_username", start, err) }()

	user, err = scanUser(r.queryer().QueryRow(ctx, userColumns+"\n WHERE u.username = $1", username))
	if isNoRows(err) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetProfile(ctx context.Context, userID string) (profile *users.Profile, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_profile", start, err) }()

	profile, err = scanProfile(r.queryer().QueryRow(ctx, `
SELECT u.id::text, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_active, u.created_at,
       p.bio, p.location, p.profile_picture, p.created_at, p.updated_at
  FROM user_profiles p
  JOIN users u ON u.id = p.user_id
 WHERE p.user_id::text = $1`, userID))
	if isNoRows(err) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile writes the name fields to the account and the rest to the
// profile row in one transaction.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, update users.ProfileUpdate) (*users.Profile, error) {
	var profile *users.Profile
	err := r.WithTx(ctx, func(repo users.Repository) error {
		txRepo := repo.(*UserRepository)
		start := time.Now()
		q := txRepo.queryer()

		tag, err := q.Exec(ctx,
			`UPDATE users SET first_name = $2, last_name = $3 WHERE id::text = $1`,
			userID, update.FirstName, update.LastName,
		)
		if err == nil && tag.RowsAffected() == 0 {
			err = users.ErrUserNotFound
		}
		if err == nil {
			_, err = q.Exec(ctx, `
UPDATE user_profiles
   SET bio = $2, location = $3, profile_picture = $4, updated_at = now()
 WHERE user_id::text = $1`,
				userID, update.Bio, update.Location, update.ProfilePicture,
			)
		}
		metrics.RecordQuery("update_profile", start, err)
		if errors.Is(err, users.ErrUserNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}

		profile, err = txRepo.GetProfile(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// WithTx runs fn against a repository bound to one transaction. Nested calls
// reuse the outer transaction.
func (r *UserRepository) WithTx(ctx context.Context, fn func(users.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&UserRepository{conn{pool: r.pool, tx: tx}})
	})
}

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func scanProfile(row pgx.Row) (*users.Profile, error) {
	var profile users.Profile
	err := row.Scan(
		&profile.User.ID,
		&profile.User.Username,
		&profile.User.Email,
		&profile.User.FirstName,
		&profile.User.LastName,
		&profile.User.PasswordHash,
		&profile.User.IsActive,
		&profile.User.CreatedAt,
		&profile.Bio,
		&profile.Location,
		&profile.ProfilePicture,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
