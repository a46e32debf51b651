package service

import (
	"context"

	"no3d-library-api/models"
)

// EntitlementClientInterface defines the contract for the billing provider
type EntitlementClientInterface interface {
	// ListActiveSubscriptions returns the customer's subscriptions with status active
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]models.Subscription, error)
	// GetCustomer returns ErrNotFound when the customer does not exist
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
}
