package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/services/billing"
	"github.com/nijaru/yt-transcripts/validation"
)

// SubscriptionService is satisfied by *billing.Service.
type SubscriptionService interface {
	Current(ctx context.Context, userID string) (*billing.SubscriptionView, error)
	StartCheckout(ctx context.Context, user *models.User, priceID string) (string, error)
}

type SubscriptionHandler struct {
	service   SubscriptionService
	validator *validation.Validator
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

// subscriptionResponse carries the caller's effective tier next to the row so
// an expired trial reads as free.
type subscriptionResponse struct {
	Subscription *billing.SubscriptionView `json:"subscription"`
	Tier         models.Tier               `json:"tier"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

func NewSubscriptionHandler(service SubscriptionService, validator *validation.Validator) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:   service,
		validator: validator,
	}
}

// HandleGet handles GET /api/v1/subscription
func (h *SubscriptionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.service.Current(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, subscriptionResponse{
		Subscription: view,
		Tier:         user.EffectiveTier(time.Now().UTC()),
	})
}

// HandleCheckout handles POST /api/v1/subscription
func (h *SubscriptionHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodPost},
		RequireJSON:    true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req checkoutRequest
	if err := readJSON(w, r, h.validator.MaxBodyBytes(), &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.validator.ValidatePriceID(req.PriceID); err != nil {
		respondError(w, r, err)
		return
	}

	url, err := h.service.StartCheckout(r.Context(), user, req.PriceID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, checkoutResponse{CheckoutURL: url})
}
