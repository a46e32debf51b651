package repository

import (
	"context"
	"sync"
)

// MemoryVersionFloorRepository keeps the floor in process memory; the floor is lost
// on restart.
type MemoryVersionFloorRepository struct {
	mu      sync.Mutex
	version int64
}

// NewMemoryVersionFloorRepository creates a new MemoryVersionFloorRepository
func NewMemoryVersionFloorRepository() *MemoryVersionFloorRepository {
	return &MemoryVersionFloorRepository{}
}

// Ensure MemoryVersionFloorRepository implements VersionFloorRepositoryInterface
var _ VersionFloorRepositoryInterface = (*MemoryVersionFloorRepository)(nil)

// Get returns the current floor
func (r *MemoryVersionFloorRepository) Get(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version, nil
}

// Raise stores version if it is greater than the current floor
func (r *MemoryVersionFloorRepository) Raise(ctx context.Context, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version > r.version {
		r.version = version
	}
	return nil
}
