package service

import (
	"context"

	"no3d-library-api/models"
)

// CatalogClientInterface defines the contract for the catalog host (GitHub or Drive).
// Paths are catalog-relative and slash separated; "" is the catalog root.
type CatalogClientInterface interface {
	// ListDirectory returns the immediate children of path, in host order.
	// Returns ErrNotFound when path does not exist.
	ListDirectory(ctx context.Context, path string) ([]models.CatalogEntry, error)
	// ReadFile returns the file bytes and its current revision.
	// Returns ErrNotFound when path does not exist.
	ReadFile(ctx context.Context, path string) (*models.CatalogFile, error)
	// WriteFile creates or replaces path. A non-empty expectedRevision makes the write
	// conditional and ErrConflict is returned when the host holds a different revision.
	WriteFile(ctx context.Context, path string, content []byte, expectedRevision, message string) error
}
