package postgres

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

	getUserByIDQuery    = `SELECT` + userColumns + `FROM users WHERE id = $1`
	getUserByEmailQuery = `SELECT` + userColumns + `FROM users WHERE lower(email) = lower($1)`

	upsertUserQuery = `
        INSERT INTO users (` + userColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email,
            name = EXCLUDED.name,
            updated_at = EXCLUDED.updated_at
    `

	updateUserTierQuery = `
        UPDATE users SET subscription_tier = $1, updated_at = $2 WHERE id = $3
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

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, "UserRepository.FindByEmail", getUserByEmailQuery, email)
}

func (r *UserRepository) find(ctx context.Context, op, query, arg string) (*models.User, error) {
	u := &models.User{}
	var tier string
	var trialEndsAt sql.NullTime

	err := r.db.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&tier,
		&trialEndsAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query user")
	}

	u.SubscriptionTier = models.Tier(tier)
	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		u.TrialEndsAt = &t
	}
	return u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *models.User) error {
	const op = "UserRepository.Upsert"

	if u.SubscriptionTier == "" {
		u.SubscriptionTier = models.TierFree
	}

	_, err := r.db.db.ExecContext(ctx, upsertUserQuery,
		u.ID,
		u.Email,
		u.Name,
		string(u.SubscriptionTier),
		u.TrialEndsAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if err := mapError(err); err == repository.ErrDuplicate {
			return err
		}
		return errors.Internal(op, err, "Failed to save user")
	}
	return nil
}
