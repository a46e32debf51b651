package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"no3d-library-api/models"
)

const polarPageLimit = 100

// PolarConfig holds billing provider credentials
type PolarConfig struct {
	BaseURL        string
	Token          string
	OrganizationID string
	Timeout        time.Duration
}

// PolarClient queries subscriptions and customers from the billing provider
// Implements EntitlementClientInterface
type PolarClient struct {
	cfg        PolarConfig
	httpClient *http.Client
}

// NewPolarClient creates a new PolarClient
func NewPolarClient(cfg PolarConfig) *PolarClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.polar.sh"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &PolarClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Ensure PolarClient implements EntitlementClientInterface
var _ EntitlementClientInterface = (*PolarClient)(nil)

type polarPagination struct {
	TotalCount int `json:"total_count"`
	MaxPage    int `json:"max_page"`
}

type polarSubscriptionList struct {
	Items      []models.Subscription `json:"items"`
	Pagination polarPagination       `json:"pagination"`
}

func (c *PolarClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build polar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polar GET %s: %w: %v", path, ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("polar GET %s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("polar GET %s returned status %d: %w", path, resp.StatusCode, ErrUpstreamUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode polar response for %s: %w", path, err)
	}
	return nil
}

// ListActiveSubscriptions lists the customer's subscriptions and keeps the active ones
func (c *PolarClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]models.Subscription, error) {
	if c.cfg.Token == "" || c.cfg.OrganizationID == "" {
		return nil, fmt.Errorf("polar subscriptions: %w", ErrMissingCredentials)
	}

	var active []models.Subscription
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("organization_id", c.cfg.OrganizationID)
		query.Set("customer_id", customerID)
		query.Set("active", "true")
		query.Set("limit", strconv.Itoa(polarPageLimit))
		query.Set("page", strconv.Itoa(page))

		var list polarSubscriptionList
		if err := c.getJSON(ctx, "/v1/subscriptions/", query, &list); err != nil {
			return nil, err
		}

		for _, sub := range list.Items {
			if sub.IsActive() {
				active = append(active, sub)
			}
		}

		if page >= list.Pagination.MaxPage || len(list.Items) == 0 {
			break
		}
	}
	return active, nil
}

// GetCustomer fetches a customer record by id
func (c *PolarClient) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	if c.cfg.Token == "" {
		return nil, fmt.Errorf("polar customers: %w", ErrMissingCredentials)
	}

	var customer models.Customer
	if err := c.getJSON(ctx, "/v1/customers/"+url.PathEscape(customerID), nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}
