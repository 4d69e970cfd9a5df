package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

const (
	subscriptionColumns = `
        id, user_id, stripe_customer_id, stripe_subscription_id,
        status, current_period_end, created_at, updated_at
    `

	getSubscriptionByUserQuery     = `SELECT` + subscriptionColumns + `FROM subscriptions WHERE user_id = $1`
	getSubscriptionByStripeIDQuery = `SELECT` + subscriptionColumns + `FROM subscriptions WHERE stripe_subscription_id = $1`

	insertSubscriptionQuery = `
        INSERT INTO subscriptions (` + subscriptionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	updateSubscriptionQuery = `
        UPDATE subscriptions SET
            status = $1,
            current_period_end = $2,
            updated_at = $3
        WHERE stripe_subscription_id = $4
    `
)

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.find(ctx, "SubscriptionRepository.FindByUserID", getSubscriptionByUserQuery, userID)
}

func (r *SubscriptionRepository) FindByStripeSubscriptionID(
	ctx context.Context,
	stripeSubscriptionID string,
) (*models.Subscription, error) {
	return r.find(ctx, "SubscriptionRepository.FindByStripeSubscriptionID",
		getSubscriptionByStripeIDQuery, stripeSubscriptionID)
}

func (r *SubscriptionRepository) find(ctx context.Context, op, query, arg string) (*models.Subscription, error) {
	s := &models.Subscription{}
	var status string

	err := r.db.db.QueryRowContext(ctx, query, arg).Scan(
		&s.ID,
		&s.UserID,
		&s.StripeCustomerID,
		&s.StripeSubscriptionID,
		&status,
		&s.CurrentPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query subscription")
	}

	s.Status = models.SubscriptionStatus(status)
	return s, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription, tier models.Tier) error {
	const op = "SubscriptionRepository.Create"

	err := withTransaction(ctx, r.db.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSubscriptionQuery,
			sub.ID,
			sub.UserID,
			sub.StripeCustomerID,
			sub.StripeSubscriptionID,
			string(sub.Status),
			sub.CurrentPeriodEnd,
			sub.CreatedAt,
			sub.UpdatedAt,
		); err != nil {
			return mapError(err)
		}
		return setTier(ctx, tx, sub.UserID, tier, sub.UpdatedAt)
	})
	if err == repository.ErrDuplicate || err == repository.ErrNotFound {
		return err
	}
	if err != nil {
		return errors.Internal(op, err, "Failed to create subscription")
	}
	return nil
}

func (r *SubscriptionRepository) SaveWithTier(ctx context.Context, sub *models.Subscription, tier models.Tier) error {
	const op = "SubscriptionRepository.SaveWithTier"

	err := withTransaction(ctx, r.db.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateSubscriptionQuery,
			string(sub.Status),
			sub.CurrentPeriodEnd,
			sub.UpdatedAt,
			sub.StripeSubscriptionID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrNotFound
		}
		return setTier(ctx, tx, sub.UserID, tier, sub.UpdatedAt)
	})
	if err == repository.ErrNotFound {
		return err
	}
	if err != nil {
		return errors.Internal(op, err, "Failed to update subscription")
	}
	return nil
}

func setTier(ctx context.Context, tx *sql.Tx, userID string, tier models.Tier, now time.Time) error {
	res, err := tx.ExecContext(ctx, updateUserTierQuery, string(tier), now, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
