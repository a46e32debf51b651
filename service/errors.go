package service

import "errors"

var (
	// ErrCatalogUnavailable means the top-level catalog listing could not be read
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrNotFound means a customer or catalog path does not exist
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable wraps network and provider failures
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMissingCredentials means an API token or organization id is not configured
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrConflict means a conditional write lost against a concurrent update
	ErrConflict = errors.New("revision conflict")
	// ErrUnauthorized means a webhook signature was missing or invalid
	ErrUnauthorized = errors.New("unauthorized")
)
