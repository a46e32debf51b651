package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"no3d-library-api/models"
	"no3d-library-api/obs"
	"no3d-library-api/service"
)

// Signature and event headers sent by the webhook providers
const (
	HeaderCatalogSignature = "X-Hub-Signature-256"
	HeaderCatalogEvent     = "X-GitHub-Event"
	HeaderBillingSignature = "X-Signature"

	// older billing deliveries name the header after the provider
	HeaderBillingSignatureLegacy = "X-Polar-Signature"
)

// maxWebhookBody caps how much of a delivery is read
const maxWebhookBody = 5 << 20

type webhookHandler func(ctx context.Context, event models.WebhookEvent) (service.WebhookOutcome, error)

// WebhookController handles inbound webhook deliveries
type WebhookController struct {
	webhooks service.WebhookServiceInterface
}

// NewWebhookController creates a new WebhookController
func NewWebhookController(webhooks service.WebhookServiceInterface) *WebhookController {
	return &WebhookController{webhooks: webhooks}
}

// CatalogWebhook handles POST /webhooks/catalog
func (c *WebhookController) CatalogWebhook(w http.ResponseWriter, r *http.Request) {
	c.receive(w, r, r.Header.Get(HeaderCatalogSignature), r.Header.Get(HeaderCatalogEvent), c.webhooks.HandleCatalogEvent)
}

// BillingWebhook handles POST /webhooks/billing
func (c *WebhookController) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(HeaderBillingSignature)
	if signature == "" {
		signature = r.Header.Get(HeaderBillingSignatureLegacy)
	}
	c.receive(w, r, signature, "", c.webhooks.HandleBillingEvent)
}

// receive reads the raw body so the signature is checked over the exact bytes sent
func (c *WebhookController) receive(w http.ResponseWriter, r *http.Request, signature, name string, handle webhookHandler) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Unreadable body", err.Error())
		return
	}

	event := models.WebhookEvent{
		Name:            name,
		RawPayload:      body,
		SignatureHeader: signature,
	}

	outcome, err := handle(r.Context(), event)
	switch {
	case errors.Is(err, service.ErrMissingSignature):
		writeJSONError(w, http.StatusUnauthorized, "Missing signature", "")
	case errors.Is(err, service.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "Invalid signature", "")
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	default:
		obs.Logger.Debug("webhook_acknowledged", "path", r.URL.Path, "outcome", outcome)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
