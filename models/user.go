package models

import (
	"time"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierTrial   Tier = "trial"
	TierPremium Tier = "premium"
)

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	SubscriptionTier Tier       `json:"subscriptionTier"`
	TrialEndsAt      *time.Time `json:"trialEndsAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// EffectiveTier treats an expired trial as free.
func (u *User) EffectiveTier(now time.Time) Tier {
	if u.SubscriptionTier == TierTrial && u.TrialEndsAt != nil && now.After(*u.TrialEndsAt) {
		return TierFree
	}
	return u.SubscriptionTier
}
