package models

import (
	"time"
)

// SubscriptionStatus mirrors the billing provider's status string. Values
// outside the three below are stored verbatim.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"userId"`
	StripeCustomerID     string             `json:"stripeCustomerId"`
	StripeSubscriptionID string             `json:"stripeSubscriptionId"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodEnd     time.Time          `json:"currentPeriodEnd"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// TierFor derives the cached user tier from a subscription status.
func TierFor(status SubscriptionStatus) Tier {
	if status == SubscriptionActive {
		return TierPremium
	}
	return TierFree
}
