package models

import "time"

// SubscriptionStatusActive is the billing provider status that grants access
const SubscriptionStatusActive = "active"

// SubscriptionTierPro is reported for customers holding an active subscription
const SubscriptionTierPro = "pro_monthly"

// LibraryAll grants access to the full library archive
const LibraryAll = "all"

// Subscription is the subset of a billing subscription this service reads
type Subscription struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	CustomerID       string     `json:"customer_id"`
	ProductID        string     `json:"product_id"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

// IsActive reports whether the subscription grants access
func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// Customer is a billing provider customer record
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Entitlement is computed per request and never stored
type Entitlement struct {
	CustomerID            string
	HasActiveSubscription bool
	ExpiresAt             *time.Time
}

// EntitlementUser is the user block of the entitlements response
type EntitlementUser struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	SubscriptionTier *string `json:"subscription_tier"`
}

// EntitlementGrants is the entitlements block of the entitlements response
type EntitlementGrants struct {
	Libraries []string   `json:"libraries"`
	Features  []string   `json:"features"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// EntitlementsResponse is the body of GET /user/entitlements
type EntitlementsResponse struct {
	User         EntitlementUser   `json:"user"`
	Entitlements EntitlementGrants `json:"entitlements"`

	// Always null; clients read the version from /catalog/version.
	CatalogVersion *int64 `json:"catalog_version"`
}
