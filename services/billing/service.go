package billing

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

// Service serves the caller facing subscription operations.
type Service struct {
	subs     repository.SubscriptionRepository
	provider Provider
	logger   *logrus.Logger
}

func NewService(subs repository.SubscriptionRepository, provider Provider, logger *logrus.Logger) *Service {
	return &Service{subs: subs, provider: provider, logger: logger}
}

// Current returns the user's subscription, or nil when there is none. Live
// provider state is attached when it can be fetched.
func (s *Service) Current(ctx context.Context, userID string) (*SubscriptionView, error) {
	const op = "BillingService.Current"

	sub, err := s.subs.FindByUserID(ctx, userID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to load subscription")
	}

	view := &SubscriptionView{Subscription: *sub}

	remote, err := s.provider.GetSubscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"operation":              op,
			"stripe_subscription_id": sub.StripeSubscriptionID,
		}).Warn("Failed to fetch live subscription")
		return view, nil
	}
	view.Stripe = remote

	return view, nil
}

// StartCheckout opens a checkout session for priceID and returns its URL.
func (s *Service) StartCheckout(ctx context.Context, user *models.User, priceID string) (string, error) {
	const op = "BillingService.StartCheckout"

	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return "", errors.InvalidInput(op, nil, "Price ID is required")
	}

	if _, err := s.subs.FindByUserID(ctx, user.ID); err == nil {
		return "", errors.Conflict(op, nil, "User already has a subscription")
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return "", errors.Internal(op, err, "Failed to load subscription")
	}

	logger := s.logger.WithFields(logrus.Fields{
		"operation": op,
		"user_id":   user.ID,
		"price_id":  priceID,
	})

	customerID, err := s.provider.FindOrCreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve billing customer")
		return "", errors.ProviderUnavailable(op, err, "Billing provider unavailable")
	}

	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID:        customerID,
		PriceID:           priceID,
		ClientReferenceID: user.ID,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create checkout session")
		return "", errors.ProviderUnavailable(op, err, "Billing provider unavailable")
	}

	logger.WithField("customer_id", customerID).Info("Checkout session created")
	return url, nil
}
