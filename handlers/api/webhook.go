package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/services/billing"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBytes = 1 << 20
)

// WebhookProcessor is satisfied by *billing.Reconciler.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	processor WebhookProcessor
}

type webhookResponse struct {
	Received bool `json:"received"`
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleStripe handles POST /api/v1/webhooks/stripe. The body is verified
// byte for byte, so it is read raw and never decoded here.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	const op = "WebhookHandler.HandleStripe"

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "Missing signature"))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondError(w, r, errors.InvalidInput(op, err, "Unreadable webhook body"))
		return
	}

	if err := h.processor.HandleWebhook(r.Context(), payload, signature); err != nil {
		if stderrors.Is(err, billing.ErrInvalidSignature) {
			respondError(w, r, errors.InvalidInput(op, err, "Invalid signature"))
			return
		}
		respondError(w, r, errors.Internal(op, err, "Webhook processing failed"))
		return
	}

	respondJSON(w, r, http.StatusOK, webhookResponse{Received: true})
}
