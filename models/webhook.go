package models

import "time"

// EventType classifies an inbound webhook
type EventType string

const (
	EventCatalogPush          EventType = "catalog-push"
	EventSubscriptionCreated  EventType = "subscription.created"
	EventSubscriptionUpdated  EventType = "subscription.updated"
	EventSubscriptionCanceled EventType = "subscription.canceled"
	EventSubscriptionRevoked  EventType = "subscription.revoked"
	EventCheckoutCreated      EventType = "checkout.created"
	EventOrderCreated         EventType = "order.created"
	EventUnknown              EventType = "unknown"
)

// ParseBillingEventType maps a billing provider event name to an EventType
func ParseBillingEventType(name string) EventType {
	switch t := EventType(name); t {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled,
		EventSubscriptionRevoked, EventCheckoutCreated, EventOrderCreated:
		return t
	default:
		return EventUnknown
	}
}

// IsSubscriptionLifecycle reports whether the type is one of the subscription.* events
func (t EventType) IsSubscriptionLifecycle() bool {
	switch t {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled, EventSubscriptionRevoked:
		return true
	}
	return false
}

// WebhookEvent exists only for the duration of one ingress call
type WebhookEvent struct {
	Type            EventType // set by the webhook service once the event is classified
	Name            string    // event name as sent, e.g. the X-GitHub-Event header
	RawPayload      []byte
	SignatureHeader string
}

// PushCommit lists the paths touched by one commit of a push
type PushCommit struct {
	ID       string   `json:"id"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// PushPayload is the subset of a catalog host push event this service reads
type PushPayload struct {
	Ref     string       `json:"ref"`
	After   string       `json:"after"`
	Commits []PushCommit `json:"commits"`
}

// BillingEventData is the subset of a billing webhook's data object this service reads
type BillingEventData struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	Status     string `json:"status"`
}

// BillingPayload is a billing provider webhook body
type BillingPayload struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	CreatedAt *time.Time       `json:"created_at"`
	Data      BillingEventData `json:"data"`
}

// LifecycleEvent is the structured record handed to an event sink for billing events
type LifecycleEvent struct {
	Type           EventType `json:"type"`
	EventID        string    `json:"event_id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	CustomerID     string    `json:"customer_id,omitempty"`
	ProductID      string    `json:"product_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
