package billing

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nijaru/yt-transcripts/models"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventUnknown             EventKind = "unknown"
)

// KindOf maps a provider event type onto the kinds the reconciler handles.
func KindOf(eventType string) EventKind {
	switch k := EventKind(eventType); k {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return k
	}
	return EventUnknown
}

const CheckoutModeSubscription = "subscription"

// Event is a verified billing notification. Exactly one of Checkout or
// Subscription is set for the known kinds.
type Event struct {
	ID           string
	Type         string
	Kind         EventKind
	Checkout     *CheckoutSession
	Subscription *SubscriptionState
}

type CheckoutSession struct {
	ID             string
	Mode           string
	CustomerID     string
	SubscriptionID string
	// CustomerEmail is customer_email, or customer_details.email when the
	// session was opened for an existing customer.
	CustomerEmail string
}

// SubscriptionState is the provider's view of a subscription.
type SubscriptionState struct {
	ID                string                    `json:"id"`
	CustomerID        string                    `json:"customerId"`
	Status            models.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  time.Time                 `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool                      `json:"cancelAtPeriodEnd"`
	PriceID           string                    `json:"priceId,omitempty"`
}

// Verifier authenticates a raw webhook payload and decodes it.
type Verifier interface {
	Verify(payload []byte, signature string) (*Event, error)
}

type CheckoutRequest struct {
	CustomerID        string
	PriceID           string
	ClientReferenceID string
}

// Provider is the remote billing API.
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*SubscriptionState, error)
	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)
	// CreateCheckoutSession opens a subscription mode checkout and returns
	// its URL.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// SubscriptionView is the caller's subscription merged with live provider
// state when it could be fetched.
type SubscriptionView struct {
	models.Subscription
	Stripe *SubscriptionState `json:"stripe,omitempty"`
}
