package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"no3d-library-api/metrics"
	"no3d-library-api/models"
	"no3d-library-api/utils"
)

// fakeCatalog is an in-memory catalog host. Directory listings keep insertion order.
type fakeCatalog struct {
	mu        sync.Mutex
	dirs      map[string][]models.CatalogEntry
	files     map[string][]byte
	revisions map[string]int
	listErr   map[string]error
	readErr   map[string]error
	writeErr  error
	// conflicts makes the next N conditional writes fail with ErrConflict
	conflicts int
	writes    []string
	lists     int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		dirs:      map[string][]models.CatalogEntry{"": nil},
		files:     map[string][]byte{},
		revisions: map[string]int{},
		listErr:   map[string]error{},
		readErr:   map[string]error{},
	}
}

func (f *fakeCatalog) ensureDir(path string) {
	if _, ok := f.dirs[path]; ok {
		return
	}
	parent, name := utils.SplitCatalogPath(path)
	f.ensureDir(parent)
	f.dirs[parent] = append(f.dirs[parent], models.CatalogEntry{Name: name, Path: path, Type: models.EntryTypeDir})
	f.dirs[path] = nil
}

func (f *fakeCatalog) addFile(path string, content string) *fakeCatalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putLocked(path, []byte(content))
	return f
}

func (f *fakeCatalog) putLocked(path string, content []byte) {
	if _, exists := f.files[path]; !exists {
		parent, name := utils.SplitCatalogPath(path)
		f.ensureDir(parent)
		f.dirs[parent] = append(f.dirs[parent], models.CatalogEntry{Name: name, Path: path, Type: models.EntryTypeFile})
	}
	f.files[path] = content
	f.revisions[path]++
}

func (f *fakeCatalog) content(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.files[path])
}

func (f *fakeCatalog) ListDirectory(ctx context.Context, path string) ([]models.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if err := f.listErr[path]; err != nil {
		return nil, err
	}
	entries, ok := f.dirs[strings.Trim(path, "/")]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.CatalogEntry(nil), entries...), nil
}

func (f *fakeCatalog) ReadFile(ctx context.Context, path string) (*models.CatalogFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[path]; err != nil {
		return nil, err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.CatalogFile{
		Path:     path,
		Content:  append([]byte(nil), content...),
		Revision: strconv.Itoa(f.revisions[path]),
	}, nil
}

func (f *fakeCatalog) WriteFile(ctx context.Context, path string, content []byte, expectedRevision, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.conflicts > 0 {
		f.conflicts--
		return ErrConflict
	}
	_, exists := f.files[path]
	switch {
	case expectedRevision == "" && exists:
		return ErrConflict
	case expectedRevision != "" && expectedRevision != strconv.Itoa(f.revisions[path]):
		return ErrConflict
	}
	f.putLocked(path, content)
	f.writes = append(f.writes, message)
	return nil
}

// fakeEntitlementClient returns canned billing data
type fakeEntitlementClient struct {
	subscriptions map[string][]models.Subscription
	customers     map[string]models.Customer
	err           error
	calls         int32
}

func (f *fakeEntitlementClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]models.Subscription, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.subscriptions[customerID], nil
}

func (f *fakeEntitlementClient) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	customer, ok := f.customers[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &customer, nil
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeVersions is a fixed CatalogVersionServiceInterface
type fakeVersions struct {
	mu       sync.Mutex
	version  int64
	advances int
	err      error
}

func (f *fakeVersions) Current(ctx context.Context) models.CatalogVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.CatalogVersion{Version: f.version, LastUpdated: "2026-03-01T12:00:00.000Z"}
}

func (f *fakeVersions) Advance(ctx context.Context) (models.CatalogVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.CatalogVersion{}, f.err
	}
	f.advances++
	f.version++
	return models.CatalogVersion{Version: f.version}, nil
}

// recordingSink collects lifecycle events
type recordingSink struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (s *recordingSink) Record(ctx context.Context, event models.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// recordingMetrics keeps webhook labels as "source/type/outcome"
type recordingMetrics struct {
	metrics.Noop
	mu       sync.Mutex
	webhooks []string
}

func (m *recordingMetrics) IncWebhook(source, eventType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, source+"/"+eventType+"/"+outcome)
}
