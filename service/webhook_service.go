package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"no3d-library-api/config"
	"no3d-library-api/metrics"
	"no3d-library-api/models"
	"no3d-library-api/obs"
	"no3d-library-api/utils"
)

var (
	// ErrMissingSignature means a secret is configured but no signature header was sent
	ErrMissingSignature = fmt.Errorf("missing signature: %w", ErrUnauthorized)
	// ErrInvalidSignature means the signature header did not match the payload
	ErrInvalidSignature = fmt.Errorf("invalid signature: %w", ErrUnauthorized)
)

// WebhookOutcome describes what a delivered webhook caused
type WebhookOutcome string

const (
	OutcomeAdvanced WebhookOutcome = "advanced"
	OutcomeIgnored  WebhookOutcome = "ignored"
	OutcomeRecorded WebhookOutcome = "recorded"
	OutcomeRejected WebhookOutcome = "rejected"
	OutcomeFailed   WebhookOutcome = "failed"
)

// WebhookServiceInterface defines the contract for inbound webhook processing
type WebhookServiceInterface interface {
	HandleCatalogEvent(ctx context.Context, event models.WebhookEvent) (WebhookOutcome, error)
	HandleBillingEvent(ctx context.Context, event models.WebhookEvent) (WebhookOutcome, error)
}

// WebhookConfig carries the secrets and tracked catalog location
type WebhookConfig struct {
	CatalogSecret  string
	BillingSecret  string
	TrackedBranch  string
	CategoryPrefix string
}

// WebhookService verifies and dispatches webhooks. Signature verification always
// runs before any parsing or state change. Deliveries are not deduplicated: a
// replayed catalog push advances the version again.
type WebhookService struct {
	cfg      WebhookConfig
	versions CatalogVersionServiceInterface
	sink     EventSinkInterface
	metrics  metrics.Metrics
	now      func() time.Time
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookConfig, versions CatalogVersionServiceInterface, sink EventSinkInterface, m metrics.Metrics) *WebhookService {
	if m == nil {
		m = metrics.Noop{}
	}
	if sink == nil {
		sink = NewLogEventSink(nil)
	}
	return &WebhookService{cfg: cfg, versions: versions, sink: sink, metrics: m, now: time.Now}
}

// Ensure WebhookService implements WebhookServiceInterface
var _ WebhookServiceInterface = (*WebhookService)(nil)

func verifyEvent(event models.WebhookEvent, secret string) error {
	if secret == "" {
		obs.Logger.Warn("webhook_signature_skipped", "reason", "no secret configured")
		return nil
	}
	if event.SignatureHeader == "" {
		return ErrMissingSignature
	}
	if !VerifySignature(event.RawPayload, event.SignatureHeader, secret) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *WebhookService) finish(source string, eventType models.EventType, outcome WebhookOutcome, err error) (WebhookOutcome, error) {
	s.metrics.IncWebhook(source, string(eventType), string(outcome))
	return outcome, err
}

// HandleCatalogEvent processes a catalog host delivery. event.Name carries the
// host's event header ("push", "ping", ...); an empty name is treated as push.
func (s *WebhookService) HandleCatalogEvent(ctx context.Context, event models.WebhookEvent) (WebhookOutcome, error) {
	event.Type = models.EventUnknown
	if err := verifyEvent(event, s.cfg.CatalogSecret); err != nil {
		obs.Logger.Warn("catalog_webhook_rejected", "error", err)
		return s.finish(config.SourceCatalog, event.Type, OutcomeRejected, err)
	}

	if event.Name != "" && event.Name != "push" {
		obs.Logger.Info("catalog_webhook_ignored", "event", event.Name, "event_type", event.Type)
		return s.finish(config.SourceCatalog, event.Type, OutcomeIgnored, nil)
	}

	var push models.PushPayload
	if err := json.Unmarshal(event.RawPayload, &push); err != nil {
		obs.Logger.Warn("catalog_webhook_unparsable", "error", err)
		return s.finish(config.SourceCatalog, event.Type, OutcomeIgnored, nil)
	}
	event.Type = models.EventCatalogPush

	if push.Ref != "refs/heads/"+s.cfg.TrackedBranch && push.Ref != s.cfg.TrackedBranch {
		obs.Logger.Info("catalog_push_skipped", "reason", "untracked branch", "ref", push.Ref)
		return s.finish(config.SourceCatalog, event.Type, OutcomeIgnored, nil)
	}

	if len(push.Commits) > 0 && !pushTouchesCatalog(push, s.cfg.CategoryPrefix) {
		obs.Logger.Info("catalog_push_skipped", "reason", "no product changes", "ref", push.Ref, "commits", len(push.Commits))
		return s.finish(config.SourceCatalog, event.Type, OutcomeIgnored, nil)
	}

	version, err := s.versions.Advance(ctx)
	if err != nil {
		obs.Logger.Error("catalog_version_advance_failed", "ref", push.Ref, "after", push.After, "error", err)
		return s.finish(config.SourceCatalog, event.Type, OutcomeFailed, err)
	}

	obs.Logger.Info("catalog_push_processed", "event_type", event.Type, "ref", push.Ref, "after", push.After, "version", version.Version)
	return s.finish(config.SourceCatalog, event.Type, OutcomeAdvanced, nil)
}

func pushTouchesCatalog(push models.PushPayload, prefix string) bool {
	for _, commit := range push.Commits {
		if utils.MentionsCategory(commit.Added, prefix) ||
			utils.MentionsCategory(commit.Modified, prefix) ||
			utils.MentionsCategory(commit.Removed, prefix) {
			return true
		}
	}
	return false
}

// HandleBillingEvent records a billing provider delivery with the event sink.
// Billing events never change local state; entitlement checks always query the
// provider live.
func (s *WebhookService) HandleBillingEvent(ctx context.Context, event models.WebhookEvent) (WebhookOutcome, error) {
	event.Type = models.EventUnknown
	if err := verifyEvent(event, s.cfg.BillingSecret); err != nil {
		obs.Logger.Warn("billing_webhook_rejected", "error", err)
		return s.finish(config.SourceBilling, event.Type, OutcomeRejected, err)
	}

	var payload models.BillingPayload
	if err := json.Unmarshal(event.RawPayload, &payload); err != nil {
		obs.Logger.Warn("billing_webhook_unparsable", "error", err)
	}

	event.Type = models.ParseBillingEventType(payload.Type)
	lifecycle := models.LifecycleEvent{
		Type:       event.Type,
		EventID:    payload.ID,
		CustomerID: payload.Data.CustomerID,
		ProductID:  payload.Data.ProductID,
		Status:     payload.Data.Status,
		OccurredAt: s.now().UTC(),
	}
	if event.Type.IsSubscriptionLifecycle() {
		lifecycle.SubscriptionID = payload.Data.ID
	}
	if payload.CreatedAt != nil {
		lifecycle.OccurredAt = payload.CreatedAt.UTC()
	}
	if event.Type == models.EventUnknown {
		obs.Logger.Info("billing_event_unhandled", "type", payload.Type)
	}

	if err := s.sink.Record(ctx, lifecycle); err != nil {
		obs.Logger.Warn("billing_event_sink_failed", "event_type", event.Type, "error", err)
	}
	return s.finish(config.SourceBilling, event.Type, OutcomeRecorded, nil)
}
