package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"no3d-library-api/metrics"
	"no3d-library-api/models"
	"no3d-library-api/obs"
)

// DefaultArchiveCacheTTL is how long a built archive is served before a rebuild
const DefaultArchiveCacheTTL = time.Hour

const archiveFlightKey = "library-archive"

// ArchiveCacheInterface defines the contract for obtaining the current archive
type ArchiveCacheInterface interface {
	Get(ctx context.Context) (*models.Artifact, error)
}

// ArchiveCacheOptions tunes an ArchiveCache
type ArchiveCacheOptions struct {
	TTL          time.Duration
	BuildTimeout time.Duration
	Metrics      metrics.Metrics
	Now          func() time.Time
}

// ArchiveCache holds at most one artifact and rebuilds it synchronously on the
// first access after it expires. Concurrent misses share a single build.
type ArchiveCache struct {
	builder      ArtifactBuilderInterface
	ttl          time.Duration
	buildTimeout time.Duration
	metrics      metrics.Metrics
	now          func() time.Time

	mu      sync.RWMutex
	current *models.Artifact
	flight  singleflight.Group
}

// NewArchiveCache creates a new ArchiveCache
func NewArchiveCache(builder ArtifactBuilderInterface, opts ArchiveCacheOptions) *ArchiveCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultArchiveCacheTTL
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 5 * time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ArchiveCache{
		builder:      builder,
		ttl:          opts.TTL,
		buildTimeout: opts.BuildTimeout,
		metrics:      opts.Metrics,
		now:          opts.Now,
	}
}

// Ensure ArchiveCache implements ArchiveCacheInterface
var _ ArchiveCacheInterface = (*ArchiveCache)(nil)

// lookup returns the cached artifact when still fresh, plus a label for metrics.
// An artifact is fresh until strictly after BuiltAt+ttl.
func (c *ArchiveCache) lookup() (*models.Artifact, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, "miss"
	}
	if c.now().After(c.current.BuiltAt.Add(c.ttl)) {
		return nil, "stale"
	}
	return c.current, "hit"
}

// Get returns the fresh artifact, building it first if the slot is empty or stale.
// Callers block until the in-flight build finishes. A caller giving up (ctx done)
// does not cancel a build other callers may be waiting on.
func (c *ArchiveCache) Get(ctx context.Context) (*models.Artifact, error) {
	artifact, result := c.lookup()
	c.metrics.IncCacheLookup(result)
	if artifact != nil {
		return artifact, nil
	}

	ch := c.flight.DoChan(archiveFlightKey, func() (interface{}, error) {
		// another flight may have filled the slot between lookup and DoChan
		if artifact, _ := c.lookup(); artifact != nil {
			return artifact, nil
		}
		return c.rebuild(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Artifact), nil
	}
}

func (c *ArchiveCache) rebuild(ctx context.Context) (*models.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, c.buildTimeout)
	defer cancel()

	obs.Logger.Info("archive_rebuild_started")
	started := time.Now()
	artifact, err := c.builder.Build(ctx)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		c.metrics.ObserveArchiveBuild("error", elapsed, 0)
		obs.Logger.Error("archive_rebuild_failed", "error", err)
		return nil, err
	}
	if artifact.BuiltAt.IsZero() {
		artifact.BuiltAt = c.now()
	}
	c.metrics.ObserveArchiveBuild("ok", elapsed, artifact.Size())

	c.mu.Lock()
	c.current = artifact
	c.mu.Unlock()
	return artifact, nil
}
