package sqlite

import (
	"context"
	"database/sql"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

const (
	userColumns = `
        id, email, name, subscription_tier, trial_ends_at, created_at, updated_at
    `

	getUserByIDQuery    = `SELECT` + userColumns + `FROM users WHERE id = ?`
	getUserByEmailQuery = `SELECT` + userColumns + `FROM users WHERE email = ?`

	upsertUserQuery = `
        INSERT INTO users (
            id, email, name, subscription_tier, trial_ends_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            email = excluded.email,
            name = excluded.name,
            updated_at = excluded.updated_at
    `

	updateUserTierQuery = `
        UPDATE users SET subscription_tier = ?, updated_at = ? WHERE id = ?
    `
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, "UserRepository.FindByID", getUserByIDQuery, id)
}

// FindByEmail matches case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, "UserRepository.FindByEmail", getUserByEmailQuery, email)
}

func (r *UserRepository) find(ctx context.Context, op, query, arg string) (*models.User, error) {
	u, err := scanUser(r.db.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query user")
	}
	return u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *models.User) error {
	const op = "UserRepository.Upsert"

	if u.SubscriptionTier == "" {
		u.SubscriptionTier = models.TierFree
	}

	err := r.db.withRetry(ctx, func() error {
		_, err := r.db.db.ExecContext(ctx, upsertUserQuery,
			u.ID,
			u.Email,
			u.Name,
			string(u.SubscriptionTier),
			u.TrialEndsAt,
			u.CreatedAt,
			u.UpdatedAt,
		)
		return err
	})
	if err != nil {
		// Another user id already owns this email.
		if err := mapError(err); err == repository.ErrDuplicate {
			return err
		}
		return errors.Internal(op, err, "Failed to save user")
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var tier string
	var trialEndsAt sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&tier,
		&trialEndsAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.SubscriptionTier = models.Tier(tier)
	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		u.TrialEndsAt = &t
	}
	return u, nil
}
