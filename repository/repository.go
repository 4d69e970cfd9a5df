package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nijaru/yt-transcripts/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListOptions struct {
	// Query matches title or content case-insensitively when set.
	Query  string
	Limit  int
	Offset int
}

// Normalize clamps Limit and Offset into the accepted range.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

type TranscriptRepository interface {
	// Create inserts t. A second transcript for the same (user, video)
	// returns ErrDuplicate.
	Create(ctx context.Context, t *models.Transcript) error
	FindByUserAndVideo(ctx context.Context, userID, videoID string) (*models.Transcript, error)
	FindByID(ctx context.Context, userID, id string) (*models.Transcript, error)
	// List returns the page newest first and the total number of matches.
	List(ctx context.Context, userID string, opts ListOptions) ([]*models.Transcript, int, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Upsert inserts u or refreshes its email and name. The subscription tier
	// of an existing user is left untouched.
	Upsert(ctx context.Context, u *models.User) error
}

type SubscriptionRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	// Create inserts a new subscription and sets the owner's tier in one
	// transaction. A second row for the user or the Stripe subscription
	// returns ErrDuplicate.
	Create(ctx context.Context, sub *models.Subscription, tier models.Tier) error
	// SaveWithTier updates status and period end of an existing subscription
	// and the owner's tier in one transaction.
	SaveWithTier(ctx context.Context, sub *models.Subscription, tier models.Tier) error
}
