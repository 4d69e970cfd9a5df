package payments

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/services/billing"
)

var ErrMissingSignature = errors.New("missing Stripe-Signature header")

type Config struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	SuccessURL       string
	CancelURL        string
	// BackendURL overrides the Stripe API base URL.
	BackendURL string
}

// Client adapts the Stripe API to billing.Verifier and billing.Provider.
type Client struct {
	api    *client.API
	cfg    Config
	logger *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = webhook.DefaultTolerance
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	backendConfig := &stripe.BackendConfig{
		LeveledLogger: logger,
	}
	if cfg.BackendURL != "" {
		backendConfig.URL = stripe.String(cfg.BackendURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &Client{api: api, cfg: cfg, logger: logger}
}

// Verify checks the Stripe-Signature header against the raw payload and
// decodes the event. Known event types with an undecodable object come back
// without a payload.
func (c *Client) Verify(payload []byte, signature string) (*billing.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                c.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing event")
	}

	return c.decodeEvent(ev), nil
}

func (c *Client) decodeEvent(ev stripe.Event) *billing.Event {
	event := &billing.Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Kind: billing.KindOf(string(ev.Type)),
	}
	if ev.Data == nil || event.Kind == billing.EventUnknown {
		return event
	}

	logger := c.logger.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})

	switch event.Kind {
	case billing.EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			logger.WithError(err).Warn("Failed to decode checkout session")
			return event
		}
		event.Checkout = checkoutFromStripe(&session)
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			logger.WithError(err).Warn("Failed to decode subscription")
			return event
		}
		event.Subscription = subscriptionFromStripe(&sub)
	}

	return event
}

func checkoutFromStripe(s *stripe.CheckoutSession) *billing.CheckoutSession {
	out := &billing.CheckoutSession{
		ID:            s.ID,
		Mode:          string(s.Mode),
		CustomerEmail: s.CustomerEmail,
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func subscriptionFromStripe(s *stripe.Subscription) *billing.SubscriptionState {
	out := &billing.SubscriptionState{
		ID:                s.ID,
		Status:            models.SubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		out.PriceID = s.Items.Data[0].Price.ID
	}
	return out
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*billing.SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving subscription %s", id)
	}
	return subscriptionFromStripe(sub), nil
}

// FindOrCreateCustomer returns the first customer with email, creating one
// when none exists.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := c.api.Customers.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", errors.Wrap(err, "listing customers")
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx

	customer, err := c.api.Customers.New(params)
	if err != nil {
		return "", errors.Wrap(err, "creating customer")
	}

	c.logger.WithField("customer_id", customer.ID).Info("Created Stripe customer")
	return customer.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	params.Context = ctx

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", errors.Wrap(err, "creating checkout session")
	}
	return session.URL, nil
}
