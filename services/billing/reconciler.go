package billing

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

// Reconciler folds billing webhooks into local subscription and user state.
// Deliveries may repeat or arrive out of order; applying an event twice
// leaves the same state as applying it once.
type Reconciler struct {
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	verifier Verifier
	provider Provider
	logger   *logrus.Logger
	now      func() time.Time
}

func NewReconciler(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	verifier Verifier,
	provider Provider,
	logger *logrus.Logger,
) *Reconciler {
	return &Reconciler{
		subs:     subs,
		users:    users,
		verifier: verifier,
		provider: provider,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook verifies payload against signature and applies the event.
// Nothing is read or written before verification succeeds.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "Reconciler.HandleWebhook"

	event, err := r.verifier.Verify(payload, signature)
	if err != nil {
		r.logger.WithError(err).WithField("operation", op).Warn("Webhook verification failed")
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return r.Apply(ctx, *event)
}

// Apply dispatches a verified event. Events that reference unknown users or
// subscriptions are logged and dropped; only storage and provider failures
// are returned so the sender retries.
func (r *Reconciler) Apply(ctx context.Context, event Event) error {
	logger := r.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	switch event.Kind {
	case EventCheckoutCompleted:
		return r.checkoutCompleted(ctx, logger, event.Checkout)
	case EventSubscriptionUpdated:
		return r.subscriptionUpdated(ctx, logger, event.Subscription)
	case EventSubscriptionDeleted:
		return r.subscriptionDeleted(ctx, logger, event.Subscription)
	default:
		logger.Debug("Ignoring unhandled billing event")
		return nil
	}
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, logger *logrus.Entry, session *CheckoutSession) error {
	const op = "Reconciler.checkoutCompleted"
	logger = logger.WithField("operation", op)

	if session == nil {
		return dropped(logger, "event has no checkout session")
	}
	if session.Mode != CheckoutModeSubscription {
		logger.WithField("mode", session.Mode).Debug("Ignoring non-subscription checkout")
		return nil
	}
	if session.CustomerEmail == "" || session.SubscriptionID == "" {
		return dropped(logger, "checkout session lacks email or subscription")
	}
	logger = logger.WithField("stripe_subscription_id", session.SubscriptionID)

	user, err := r.users.FindByEmail(ctx, session.CustomerEmail)
	if stderrors.Is(err, repository.ErrNotFound) {
		return dropped(logger, "no user for checkout email")
	}
	if err != nil {
		return errors.Wrap(err, op)
	}
	logger = logger.WithField("user_id", user.ID)

	if _, err := r.subs.FindByUserID(ctx, user.ID); err == nil {
		logger.Info("Subscription already recorded for user")
		return nil
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return errors.Wrap(err, op)
	}

	remote, err := r.provider.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return errors.Wrap(err, op)
	}

	now := r.now()
	customerID := session.CustomerID
	if customerID == "" {
		customerID = remote.CustomerID
	}
	sub := &models.Subscription{
		ID:                   uuid.New().String(),
		UserID:               user.ID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: session.SubscriptionID,
		Status:               remote.Status,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = r.subs.Create(ctx, sub, models.TierPremium)
	switch {
	case stderrors.Is(err, repository.ErrDuplicate):
		logger.Info("Subscription recorded concurrently")
		return nil
	case stderrors.Is(err, repository.ErrNotFound):
		return dropped(logger, "user disappeared before subscription was stored")
	case err != nil:
		return errors.Wrap(err, op)
	}

	logger.WithField("status", sub.Status).Info("Subscription created")
	return nil
}

func (r *Reconciler) subscriptionUpdated(ctx context.Context, logger *logrus.Entry, state *SubscriptionState) error {
	const op = "Reconciler.subscriptionUpdated"
	logger = logger.WithField("operation", op)

	if state == nil || state.ID == "" {
		return dropped(logger, "event has no subscription")
	}

	return r.save(ctx, logger.WithField("stripe_subscription_id", state.ID), state.ID, func(sub *models.Subscription) string {
		// Canceled is final at the provider; a later update for it is stale.
		if sub.Status == models.SubscriptionCanceled && state.Status != models.SubscriptionCanceled {
			return "subscription already canceled"
		}
		sub.Status = state.Status
		if !state.CurrentPeriodEnd.IsZero() {
			sub.CurrentPeriodEnd = state.CurrentPeriodEnd
		}
		return ""
	})
}

func (r *Reconciler) subscriptionDeleted(ctx context.Context, logger *logrus.Entry, state *SubscriptionState) error {
	const op = "Reconciler.subscriptionDeleted"
	logger = logger.WithField("operation", op)

	if state == nil || state.ID == "" {
		return dropped(logger, "event has no subscription")
	}

	return r.save(ctx, logger.WithField("stripe_subscription_id", state.ID), state.ID, func(sub *models.Subscription) string {
		sub.Status = models.SubscriptionCanceled
		if !state.CurrentPeriodEnd.IsZero() {
			sub.CurrentPeriodEnd = state.CurrentPeriodEnd
		}
		return ""
	})
}

// save loads the subscription, applies mutate and writes it back together
// with the tier its new status implies. A non-empty reason from mutate drops
// the event. Nothing is written when the stored state already matches.
func (r *Reconciler) save(
	ctx context.Context,
	logger *logrus.Entry,
	stripeSubscriptionID string,
	mutate func(*models.Subscription) string,
) error {
	sub, err := r.subs.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return dropped(logger, "unknown subscription")
	}
	if err != nil {
		return err
	}

	before := *sub
	if reason := mutate(sub); reason != "" {
		return dropped(logger.WithField("status", before.Status), reason)
	}
	tier := models.TierFor(sub.Status)

	if sub.Status == before.Status && sub.CurrentPeriodEnd.Equal(before.CurrentPeriodEnd) {
		user, err := r.users.FindByID(ctx, sub.UserID)
		if stderrors.Is(err, repository.ErrNotFound) {
			return dropped(logger, "subscription owner missing")
		}
		if err != nil {
			return err
		}
		if user.SubscriptionTier == tier {
			logger.WithField("status", sub.Status).Debug("Subscription already up to date")
			return nil
		}
	}

	sub.UpdatedAt = r.now()

	if err := r.subs.SaveWithTier(ctx, sub, tier); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return dropped(logger, "subscription owner missing")
		}
		return err
	}

	logger.WithFields(logrus.Fields{
		"user_id": sub.UserID,
		"status":  sub.Status,
		"tier":    tier,
	}).Info("Subscription updated")
	return nil
}

// dropped records an event that cannot be applied to local state. It is
// acknowledged so the sender stops retrying.
func dropped(logger *logrus.Entry, reason string) error {
	logger.WithField("reason", reason).Warn("Dropping billing event")
	return nil
}
