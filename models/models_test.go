package models

import (
	"testing"
	"time"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   Tier
	}{
		{SubscriptionActive, TierPremium},
		{SubscriptionCanceled, TierFree},
		{SubscriptionPastDue, TierFree},
		{SubscriptionStatus("incomplete"), TierFree},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := TierFor(tt.status); got != tt.want {
				t.Errorf("TierFor(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		user User
		want Tier
	}{
		{"premium", User{SubscriptionTier: TierPremium}, TierPremium},
		{"active trial", User{SubscriptionTier: TierTrial, TrialEndsAt: &future}, TierTrial},
		{"expired trial", User{SubscriptionTier: TierTrial, TrialEndsAt: &past}, TierFree},
		{"open ended trial", User{SubscriptionTier: TierTrial}, TierTrial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.EffectiveTier(now); got != tt.want {
				t.Errorf("EffectiveTier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTranscriptSummary(t *testing.T) {
	tr := &Transcript{ID: "t1", VideoID: "dQw4w9WgXcQ", Title: "Test Video"}
	s := NewTranscriptSummary(tr)
	if s.Status != StatusCompleted {
		t.Errorf("expected status completed, got %s", s.Status)
	}
	if s.ID != "t1" || s.VideoID != "dQw4w9WgXcQ" || s.Title != "Test Video" {
		t.Errorf("unexpected summary: %+v", s)
	}
}
