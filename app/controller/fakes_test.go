package controller

import (
	"context"
	"sync"

	"no3d-library-api/models"
	"no3d-library-api/service"
)

type fakeVersions struct {
	mu       sync.Mutex
	version  models.CatalogVersion
	advances int
	err      error
}

func (f *fakeVersions) Current(ctx context.Context) models.CatalogVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeVersions) Advance(ctx context.Context) (models.CatalogVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.CatalogVersion{}, f.err
	}
	f.advances++
	f.version.Version++
	return f.version, nil
}

type fakeEntitlements struct {
	access    map[string]bool
	responses map[string]*models.EntitlementsResponse
	err       error
	checked   []string
}

func (f *fakeEntitlements) HasAccess(ctx context.Context, customerID string) bool {
	f.checked = append(f.checked, customerID)
	return f.access[customerID]
}

func (f *fakeEntitlements) Entitlements(ctx context.Context, customerID string) (*models.EntitlementsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[customerID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return resp, nil
}

type fakeArchive struct {
	artifact *models.Artifact
	err      error
	calls    int
}

func (f *fakeArchive) Get(ctx context.Context) (*models.Artifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.artifact, nil
}
