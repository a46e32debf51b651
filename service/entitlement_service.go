package service

import (
	"context"
	"fmt"
	"strings"

	"no3d-library-api/metrics"
	"no3d-library-api/models"
	"no3d-library-api/obs"
)

// EntitlementServiceInterface defines the contract for library access decisions
type EntitlementServiceInterface interface {
	HasAccess(ctx context.Context, customerID string) bool
	Entitlements(ctx context.Context, customerID string) (*models.EntitlementsResponse, error)
}

// EntitlementService derives access live from the billing provider on every call.
// Decisions fail closed: any lookup error denies access.
type EntitlementService struct {
	client  EntitlementClientInterface
	metrics metrics.Metrics
}

// NewEntitlementService creates a new EntitlementService
func NewEntitlementService(client EntitlementClientInterface, m metrics.Metrics) *EntitlementService {
	if m == nil {
		m = metrics.Noop{}
	}
	return &EntitlementService{client: client, metrics: m}
}

// Ensure EntitlementService implements EntitlementServiceInterface
var _ EntitlementServiceInterface = (*EntitlementService)(nil)

// Check computes the entitlement for a customer
func (s *EntitlementService) Check(ctx context.Context, customerID string) models.Entitlement {
	entitlement := models.Entitlement{CustomerID: customerID}
	if strings.TrimSpace(customerID) == "" {
		return entitlement
	}

	subscriptions, err := s.client.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		obs.Logger.Warn("entitlement_lookup_failed", "customer_id", customerID, "error", err)
		return entitlement
	}

	for _, sub := range subscriptions {
		if sub.IsActive() {
			entitlement.HasActiveSubscription = true
			entitlement.ExpiresAt = sub.CurrentPeriodEnd
			break
		}
	}
	return entitlement
}

// HasAccess reports whether the customer may download the library
func (s *EntitlementService) HasAccess(ctx context.Context, customerID string) bool {
	granted := s.Check(ctx, customerID).HasActiveSubscription
	s.metrics.IncEntitlementDecision(granted)
	return granted
}

// Entitlements builds the entitlements response. The customer lookup error is
// returned as is (ErrNotFound for unknown customers); the subscription lookup
// fails closed to "no subscription".
func (s *EntitlementService) Entitlements(ctx context.Context, customerID string) (*models.EntitlementsResponse, error) {
	customer, err := s.client.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}

	entitlement := s.Check(ctx, customerID)
	resp := &models.EntitlementsResponse{
		User: models.EntitlementUser{ID: customer.ID, Email: customer.Email},
		Entitlements: models.EntitlementGrants{
			Libraries: []string{},
			Features:  []string{},
		},
	}
	if entitlement.HasActiveSubscription {
		tier := models.SubscriptionTierPro
		resp.User.SubscriptionTier = &tier
		resp.Entitlements.Libraries = []string{models.LibraryAll}
		resp.Entitlements.ExpiresAt = entitlement.ExpiresAt
	}
	return resp, nil
}
