package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// floorRowID pins the single row holding the floor
const floorRowID = 1

// VersionFloorRepository stores the version floor in PostgreSQL
type VersionFloorRepository struct {
	db *sql.DB
}

// NewVersionFloorRepository creates a new VersionFloorRepository
func NewVersionFloorRepository(db *sql.DB) *VersionFloorRepository {
	return &VersionFloorRepository{db: db}
}

// Ensure VersionFloorRepository implements VersionFloorRepositoryInterface
var _ VersionFloorRepositoryInterface = (*VersionFloorRepository)(nil)

// Get retrieves the current floor
func (r *VersionFloorRepository) Get(ctx context.Context) (int64, error) {
	query := `SELECT version FROM catalog_version_floor WHERE id = $1`

	var version int64
	err := r.db.QueryRowContext(ctx, query, floorRowID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query version floor: %w", err)
	}
	return version, nil
}

// Raise upserts the floor, never lowering it
func (r *VersionFloorRepository) Raise(ctx context.Context, version int64) error {
	query := `
		INSERT INTO catalog_version_floor (id, version, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET version = GREATEST(catalog_version_floor.version, EXCLUDED.version),
		    updated_at = CASE
		        WHEN EXCLUDED.version > catalog_version_floor.version THEN NOW()
		        ELSE catalog_version_floor.updated_at
		    END
	`

	if _, err := r.db.ExecContext(ctx, query, floorRowID, version); err != nil {
		return fmt.Errorf("failed to raise version floor: %w", err)
	}
	return nil
}
