package billing

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
	"github.com/nijaru/yt-transcripts/repository/sqlite"
)

var periodEnd = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeVerifier struct {
	event *Event
	err   error
}

func (v *fakeVerifier) Verify(payload []byte, signature string) (*Event, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.event, nil
}

type fakeProvider struct {
	subscription  *SubscriptionState
	err           error
	getCalls      int
	customerEmail string
	checkout      CheckoutRequest
}

func (p *fakeProvider) GetSubscription(ctx context.Context, id string) (*SubscriptionState, error) {
	p.getCalls++
	if p.err != nil {
		return nil, p.err
	}
	s := *p.subscription
	s.ID = id
	return &s, nil
}

func (p *fakeProvider) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.customerEmail = email
	return "cus_123", nil
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.checkout = req
	return "https://checkout.stripe.com/c/pay/cs_test_123", nil
}

type fixture struct {
	subs     *sqlite.SubscriptionRepository
	users    *sqlite.UserRepository
	provider *fakeProvider
	verifier *fakeVerifier
	rec      *Reconciler
	logger   *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), sqlite.DefaultDBConfig())
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		subs:  sqlite.NewSubscriptionRepository(db),
		users: sqlite.NewUserRepository(db),
		provider: &fakeProvider{subscription: &SubscriptionState{
			CustomerID:       "cus_123",
			Status:           models.SubscriptionActive,
			CurrentPeriodEnd: periodEnd,
		}},
		verifier: &fakeVerifier{},
		logger:   log,
	}
	f.rec = NewReconciler(f.subs, f.users, f.verifier, f.provider, log)

	now := time.Now().UTC()
	u := &models.User{ID: "user-1", Email: "buyer@example.com", Name: "Buyer", CreatedAt: now, UpdatedAt: now}
	if err := f.users.Upsert(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) tier(t *testing.T) models.Tier {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	return u.SubscriptionTier
}

func checkoutEvent(email string) Event {
	return Event{
		ID:   "evt_checkout",
		Type: string(EventCheckoutCompleted),
		Kind: EventCheckoutCompleted,
		Checkout: &CheckoutSession{
			ID:             "cs_123",
			Mode:           CheckoutModeSubscription,
			CustomerID:     "cus_123",
			SubscriptionID: "sub_123",
			CustomerEmail:  email,
		},
	}
}

func subscriptionEvent(kind EventKind, status models.SubscriptionStatus) Event {
	return Event{
		ID:   "evt_" + string(status),
		Type: string(kind),
		Kind: kind,
		Subscription: &SubscriptionState{
			ID:               "sub_123",
			CustomerID:       "cus_123",
			Status:           status,
			CurrentPeriodEnd: periodEnd.Add(24 * time.Hour),
		},
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]EventKind{
		"checkout.session.completed":    EventCheckoutCompleted,
		"customer.subscription.updated": EventSubscriptionUpdated,
		"customer.subscription.deleted": EventSubscriptionDeleted,
		"invoice.paid":                  EventUnknown,
		"":                              EventUnknown,
	}
	for in, want := range tests {
		if got := KindOf(in); got != want {
			t.Errorf("KindOf(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCheckoutThenDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, checkoutEvent("buyer@example.com")); err != nil {
		t.Fatalf("Apply(checkout) error = %v", err)
	}

	sub, err := f.subs.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected subscription row: %v", err)
	}
	if sub.Status != models.SubscriptionActive || sub.StripeSubscriptionID != "sub_123" {
		t.Errorf("unexpected subscription %+v", sub)
	}
	if !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("expected period end from provider, got %v", sub.CurrentPeriodEnd)
	}
	if f.tier(t) != models.TierPremium {
		t.Errorf("expected premium after checkout")
	}

	if err := f.rec.Apply(ctx, subscriptionEvent(EventSubscriptionDeleted, models.SubscriptionActive)); err != nil {
		t.Fatalf("Apply(deleted) error = %v", err)
	}

	sub, _ = f.subs.FindByUserID(ctx, "user-1")
	if sub.Status != models.SubscriptionCanceled {
		t.Errorf("expected canceled, got %s", sub.Status)
	}
	if f.tier(t) != models.TierFree {
		t.Errorf("expected free after delete")
	}
}

func TestCheckoutReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.rec.Apply(ctx, checkoutEvent("buyer@example.com")); err != nil {
			t.Fatalf("Apply() #%d error = %v", i, err)
		}
	}
	if f.provider.getCalls != 1 {
		t.Errorf("expected replay to stop before the provider, got %d calls", f.provider.getCalls)
	}
}

func TestCheckoutIgnoredOrDropped(t *testing.T) {
	tests := []struct {
		name  string
		event func() Event
	}{
		{"unknown user", func() Event { return checkoutEvent("stranger@example.com") }},
		{"missing email", func() Event { return checkoutEvent("") }},
		{"payment mode", func() Event {
			e := checkoutEvent("buyer@example.com")
			e.Checkout.Mode = "payment"
			return e
		}},
		{"no session", func() Event { return Event{Kind: EventCheckoutCompleted} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.rec.Apply(context.Background(), tt.event()); err != nil {
				t.Fatalf("expected event to be acknowledged, got %v", err)
			}
			if _, err := f.subs.FindByUserID(context.Background(), "user-1"); !stderrors.Is(err, repository.ErrNotFound) {
				t.Errorf("no subscription should be created, got %v", err)
			}
			if f.tier(t) != models.TierFree {
				t.Errorf("tier should stay free")
			}
		})
	}
}

func TestCheckoutEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	if err := f.rec.Apply(context.Background(), checkoutEvent("Buyer@Example.COM")); err != nil {
		t.Fatal(err)
	}
	if f.tier(t) != models.TierPremium {
		t.Errorf("expected user to be matched regardless of email case")
	}
}

func TestCheckoutProviderFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.provider.err = stderrors.New("stripe down")

	if err := f.rec.Apply(context.Background(), checkoutEvent("buyer@example.com")); err == nil {
		t.Fatal("expected error so the webhook is retried")
	}
	if f.tier(t) != models.TierFree {
		t.Errorf("tier must not change when checkout could not be recorded")
	}
}

func (f *fixture) snapshot(t *testing.T) (models.Subscription, models.User) {
	t.Helper()
	sub, err := f.subs.FindByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	u, err := f.users.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	return *sub, *u
}

func TestSubscriptionUpdatedIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, checkoutEvent("buyer@example.com")); err != nil {
		t.Fatal(err)
	}

	update := subscriptionEvent(EventSubscriptionUpdated, models.SubscriptionPastDue)
	if err := f.rec.Apply(ctx, update); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	sub1, user1 := f.snapshot(t)

	// Later clock so any rewrite would show in updated_at.
	f.rec.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	if err := f.rec.Apply(ctx, update); err != nil {
		t.Fatalf("Apply() replay error = %v", err)
	}
	sub2, user2 := f.snapshot(t)

	if !reflect.DeepEqual(sub1, sub2) {
		t.Errorf("replayed update changed subscription:\n%+v\n%+v", sub1, sub2)
	}
	if !reflect.DeepEqual(user1, user2) {
		t.Errorf("replayed update changed user:\n%+v\n%+v", user1, user2)
	}
	if sub1.Status != models.SubscriptionPastDue || user1.SubscriptionTier != models.TierFree {
		t.Errorf("expected past_due and free, got %s %s", sub1.Status, user1.SubscriptionTier)
	}
	if !sub1.CurrentPeriodEnd.Equal(periodEnd.Add(24 * time.Hour)) {
		t.Errorf("expected period end from event, got %v", sub1.CurrentPeriodEnd)
	}

	if err := f.rec.Apply(ctx, subscriptionEvent(EventSubscriptionUpdated, models.SubscriptionActive)); err != nil {
		t.Fatal(err)
	}
	if f.tier(t) != models.TierPremium {
		t.Errorf("expected premium once active again")
	}
}

func TestSubscriptionEventOrderConverges(t *testing.T) {
	deleted := subscriptionEvent(EventSubscriptionDeleted, models.SubscriptionCanceled)
	staleActive := subscriptionEvent(EventSubscriptionUpdated, models.SubscriptionActive)

	orders := map[string][]Event{
		"update then delete": {staleActive, deleted},
		"delete then update": {deleted, staleActive},
	}

	for name, events := range orders {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if err := f.rec.Apply(ctx, checkoutEvent("buyer@example.com")); err != nil {
				t.Fatal(err)
			}
			for _, e := range events {
				if err := f.rec.Apply(ctx, e); err != nil {
					t.Fatalf("Apply(%s) error = %v", e.Kind, err)
				}
			}

			sub, user := f.snapshot(t)
			if sub.Status != models.SubscriptionCanceled || user.SubscriptionTier != models.TierFree {
				t.Errorf("expected canceled and free, got %s %s", sub.Status, user.SubscriptionTier)
			}
		})
	}
}

func TestSubscriptionEventsForUnknownSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, kind := range []EventKind{EventSubscriptionUpdated, EventSubscriptionDeleted} {
		if err := f.rec.Apply(ctx, subscriptionEvent(kind, models.SubscriptionActive)); err != nil {
			t.Errorf("%s: expected drop, got %v", kind, err)
		}
	}
	if f.tier(t) != models.TierFree {
		t.Errorf("tier should be untouched")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	f := newFixture(t)
	event := Event{ID: "evt_1", Type: "invoice.paid", Kind: EventUnknown}
	if err := f.rec.Apply(context.Background(), event); err != nil {
		t.Errorf("expected unknown event to be ignored, got %v", err)
	}
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.verifier.err = stderrors.New("no signatures found matching the expected signature")
	err := f.rec.HandleWebhook(ctx, []byte(`{}`), "t=1,v1=bad")
	if !stderrors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if f.provider.getCalls != 0 {
		t.Errorf("provider must not be called before verification")
	}

	event := checkoutEvent("buyer@example.com")
	f.verifier.err = nil
	f.verifier.event = &event
	if err := f.rec.HandleWebhook(ctx, []byte(`{}`), "t=1,v1=good"); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if f.tier(t) != models.TierPremium {
		t.Errorf("expected verified checkout to be applied")
	}
}

func TestServiceCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(f.subs, f.provider, f.logger)

	view, err := svc.Current(ctx, "user-1")
	if err != nil || view != nil {
		t.Fatalf("expected no subscription, got %+v, %v", view, err)
	}

	if err := f.rec.Apply(ctx, checkoutEvent("buyer@example.com")); err != nil {
		t.Fatal(err)
	}

	view, err = svc.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if view.StripeSubscriptionID != "sub_123" || view.Stripe == nil || view.Stripe.Status != models.SubscriptionActive {
		t.Errorf("unexpected view %+v", view)
	}

	f.provider.err = stderrors.New("stripe down")
	view, err = svc.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("provider failure should degrade, got %v", err)
	}
	if view.Stripe != nil {
		t.Errorf("expected no live state when provider fails")
	}
}

func TestServiceStartCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(f.subs, f.provider, f.logger)
	user, _ := f.users.FindByID(ctx, "user-1")

	if _, err := svc.StartCheckout(ctx, user, " "); !apperrors.IsKind(err, apperrors.KindBadInput) {
		t.Errorf("expected BadInput for empty price, got %v", err)
	}

	url, err := svc.StartCheckout(ctx, user, "price_premium")
	if err != nil {
		t.Fatalf("StartCheckout() error = %v", err)
	}
	if url == "" {
		t.Errorf("expected checkout url")
	}
	if f.provider.customerEmail != "buyer@example.com" {
		t.Errorf("expected customer lookup by email, got %q", f.provider.customerEmail)
	}
	if f.provider.checkout.CustomerID != "cus_123" || f.provider.checkout.ClientReferenceID != "user-1" {
		t.Errorf("unexpected checkout request %+v", f.provider.checkout)
	}

	if err := f.rec.Apply(ctx, checkoutEvent("buyer@example.com")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.StartCheckout(ctx, user, "price_premium"); !apperrors.IsKind(err, apperrors.KindAlreadyExists) {
		t.Errorf("expected AlreadyExists with an existing subscription, got %v", err)
	}
}

func TestServiceStartCheckoutProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = stderrors.New("stripe down")
	svc := NewService(f.subs, f.provider, f.logger)
	user, _ := f.users.FindByID(context.Background(), "user-1")

	_, err := svc.StartCheckout(context.Background(), user, "price_premium")
	if !apperrors.IsKind(err, apperrors.KindProviderUnavailable) {
		t.Errorf("expected ProviderUnavailable, got %v", err)
	}
}
