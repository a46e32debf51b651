package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"no3d-library-api/models"
	"no3d-library-api/obs"
	"no3d-library-api/repository"
)

// advanceAttempts bounds retries when the version file changed under us
const advanceAttempts = 3

// lastUpdatedLayout matches the millisecond ISO-8601 form storefront clients parse
const lastUpdatedLayout = "2006-01-02T15:04:05.000Z07:00"

// CatalogVersionServiceInterface defines the contract for catalog version tracking
type CatalogVersionServiceInterface interface {
	// Current never fails; it falls back to a synthetic timestamp version
	Current(ctx context.Context) models.CatalogVersion
	// Advance increments the authoritative version record by one
	Advance(ctx context.Context) (models.CatalogVersion, error)
}

// CatalogVersionService reads and advances the version record held by the catalog host.
// The host is the only source of truth; nothing is cached locally.
type CatalogVersionService struct {
	catalog        CatalogClientInterface
	versionFile    string
	categoryPrefix string
	floor          repository.VersionFloorRepositoryInterface
	now            func() time.Time
}

// NewCatalogVersionService creates a new CatalogVersionService.
// floor may be nil, in which case a missing record is seeded from version 1.
func NewCatalogVersionService(
	catalog CatalogClientInterface,
	versionFile string,
	categoryPrefix string,
	floor repository.VersionFloorRepositoryInterface,
) *CatalogVersionService {
	return &CatalogVersionService{
		catalog:        catalog,
		versionFile:    versionFile,
		categoryPrefix: categoryPrefix,
		floor:          floor,
		now:            time.Now,
	}
}

// Ensure CatalogVersionService implements CatalogVersionServiceInterface
var _ CatalogVersionServiceInterface = (*CatalogVersionService)(nil)

// WithClock overrides the time source
func (s *CatalogVersionService) WithClock(now func() time.Time) *CatalogVersionService {
	s.now = now
	return s
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(lastUpdatedLayout)
}

// Current returns the authoritative record when readable, otherwise a synthetic
// version equal to the current unix time in seconds. The synthetic value is not
// monotonic against the authoritative one; see DESIGN.md.
func (s *CatalogVersionService) Current(ctx context.Context) models.CatalogVersion {
	file, err := s.catalog.ReadFile(ctx, s.versionFile)
	if err == nil {
		record, _, decodeErr := decodeRecord(file.Content)
		if decodeErr == nil {
			return record.ToVersion()
		}
		obs.Logger.Warn("catalog_version_unparsable", "file", s.versionFile, "error", decodeErr)
	} else if !errors.Is(err, ErrNotFound) {
		obs.Logger.Warn("catalog_version_read_failed", "file", s.versionFile, "error", err)
	}

	now := s.now()
	synthetic := models.CatalogVersion{
		Version:     now.Unix(),
		LastUpdated: formatTimestamp(now),
	}

	if s.floor != nil {
		if err := s.floor.Raise(ctx, synthetic.Version); err != nil {
			obs.Logger.Warn("version_floor_raise_failed", "version", synthetic.Version, "error", err)
		}
	}
	return synthetic
}

// Advance reads the record, increments the version by exactly one, refreshes
// last_updated and product_count and writes it back conditionally. A lost race
// is retried from a fresh read; any other write failure is returned unchanged so
// the webhook sender retries delivery.
func (s *CatalogVersionService) Advance(ctx context.Context) (models.CatalogVersion, error) {
	var lastErr error
	for attempt := 1; attempt <= advanceAttempts; attempt++ {
		version, err := s.advanceOnce(ctx)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, ErrConflict) {
			return models.CatalogVersion{}, err
		}
		lastErr = err
		obs.Logger.Warn("catalog_version_conflict", "attempt", attempt, "error", err)
	}
	return models.CatalogVersion{}, fmt.Errorf("failed to advance catalog version after %d attempts: %w", advanceAttempts, lastErr)
}

func (s *CatalogVersionService) advanceOnce(ctx context.Context) (models.CatalogVersion, error) {
	fields := map[string]json.RawMessage{}
	revision := ""
	var current int64

	file, err := s.catalog.ReadFile(ctx, s.versionFile)
	switch {
	case err == nil:
		revision = file.Revision
		record, decoded, decodeErr := decodeRecord(file.Content)
		if decodeErr != nil {
			obs.Logger.Warn("catalog_version_unparsable", "file", s.versionFile, "error", decodeErr)
			current = s.seed(ctx)
		} else {
			fields = decoded
			current = record.ToVersion().Version
		}
	case errors.Is(err, ErrNotFound):
		obs.Logger.Info("catalog_version_missing", "file", s.versionFile)
		current = s.seed(ctx)
	default:
		return models.CatalogVersion{}, fmt.Errorf("failed to read catalog version: %w", err)
	}

	next := models.CatalogVersion{
		Version:     current + 1,
		LastUpdated: formatTimestamp(s.now()),
	}

	// Keep the previous count if the listing fails
	var previousCount *int
	if raw, ok := fields["product_count"]; ok {
		_ = json.Unmarshal(raw, &previousCount)
	}
	next.ProductCount = previousCount
	if count, err := s.countCategories(ctx); err != nil {
		obs.Logger.Warn("catalog_product_count_failed", "error", err)
	} else {
		next.ProductCount = &count
	}

	delete(fields, "lastUpdated")
	delete(fields, "productCount")
	fields["version"] = mustRaw(next.Version)
	fields["last_updated"] = mustRaw(next.LastUpdated)
	fields["product_count"] = mustRaw(next.ProductCount)

	content, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return models.CatalogVersion{}, fmt.Errorf("failed to encode catalog version: %w", err)
	}

	message := fmt.Sprintf("Update catalog version to %d", next.Version)
	if err := s.catalog.WriteFile(ctx, s.versionFile, content, revision, message); err != nil {
		return models.CatalogVersion{}, fmt.Errorf("failed to write catalog version: %w", err)
	}

	obs.Logger.Info("catalog_version_advanced", "version", next.Version, "product_count", next.ProductCount)
	return next, nil
}

// decodeRecord parses the version file. Anything other than a JSON object,
// including a bare null, is unparsable.
func decodeRecord(content []byte) (models.CatalogRecord, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(content, &fields); err != nil {
		return models.CatalogRecord{}, nil, err
	}
	if fields == nil {
		return models.CatalogRecord{}, nil, errors.New("version record is not a JSON object")
	}
	var record models.CatalogRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return models.CatalogRecord{}, nil, err
	}
	return record, fields, nil
}

// seed returns the version a missing or corrupt record starts from
func (s *CatalogVersionService) seed(ctx context.Context) int64 {
	seed := int64(1)
	if s.floor == nil {
		return seed
	}
	floor, err := s.floor.Get(ctx)
	if err != nil {
		obs.Logger.Warn("version_floor_read_failed", "error", err)
		return seed
	}
	if floor > seed {
		seed = floor
	}
	return seed
}

// countCategories counts top-level product category directories
func (s *CatalogVersionService) countCategories(ctx context.Context) (int, error) {
	entries, err := s.catalog.ListDirectory(ctx, "")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name, s.categoryPrefix) {
			count++
		}
	}
	return count, nil
}

func mustRaw(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
