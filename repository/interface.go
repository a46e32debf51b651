package repository

import "context"

// VersionFloorRepositoryInterface defines the contract for persisting the highest
// synthetic catalog version ever served
type VersionFloorRepositoryInterface interface {
	// Get returns the stored floor, or 0 when none has been recorded
	Get(ctx context.Context) (int64, error)
	// Raise stores version if it is greater than the current floor
	Raise(ctx context.Context, version int64) error
}
