package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"google.golang.org/api/option"

	"no3d-library-api/app/controller"
	"no3d-library-api/app/middleware"
	"no3d-library-api/app/router"
	"no3d-library-api/config"
	"no3d-library-api/db"
	"no3d-library-api/metrics"
	"no3d-library-api/obs"
	"no3d-library-api/repository"
	"no3d-library-api/service"
)

// metricsNamespace prefixes every exported Prometheus series
const metricsNamespace = "no3d_library"

// App is the assembled service
type App struct {
	Handler http.Handler
	Metrics *metrics.Prom

	database *sql.DB
	limiter  *middleware.ClientLimiter
}

// Close releases the database connection and limiter state
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			obs.Logger.Warn("database_close_failed", "error", err)
			return
		}
		obs.Logger.Info("database_closed")
	}
}

// newCatalogClient selects the catalog host backend
func newCatalogClient(ctx context.Context, cfg config.Config) (service.CatalogClientInterface, error) {
	switch cfg.CatalogBackend {
	case config.BackendDrive:
		var opts []option.ClientOption
		if cfg.DriveCredentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.DriveCredentialsPath))
		}
		client, err := service.NewDriveCatalogClient(ctx, cfg.DriveRootFolderID, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize drive catalog: %w", err)
		}
		return client, nil
	default:
		if cfg.GitHubToken == "" {
			obs.Logger.Warn("catalog_credentials_missing", "backend", config.BackendGitHub)
		}
		return service.NewGitHubCatalogClient(service.GitHubCatalogConfig{
			BaseURL: cfg.GitHubAPIURL,
			Token:   cfg.GitHubToken,
			Owner:   cfg.GitHubOwner,
			Repo:    cfg.GitHubRepo,
			Branch:  cfg.GitHubBranch,
			Timeout: cfg.UpstreamTimeout,
		}), nil
	}
}

// Initialize initializes the application
func Initialize(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Metrics: metrics.NewProm(metricsNamespace)}

	// Initialize catalog host client
	catalog, err := newCatalogClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Optional version floor store
	var floor repository.VersionFloorRepositoryInterface
	if cfg.DatabaseURL != "" {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.database = database
		floor = repository.NewVersionFloorRepository(database)
	}

	// Initialize services
	versions := service.NewCatalogVersionService(catalog, cfg.CatalogVersionFile, cfg.CatalogCategoryPrefix, floor)
	builder := service.NewArtifactBuilder(catalog, versions, cfg.CatalogCategoryPrefix)
	archive := service.NewArchiveCache(builder, service.ArchiveCacheOptions{
		TTL:          cfg.ArchiveCacheTTL,
		BuildTimeout: cfg.ArchiveBuildTimeout,
		Metrics:      a.Metrics,
	})

	billing := service.NewPolarClient(service.PolarConfig{
		BaseURL:        cfg.PolarAPIURL,
		Token:          cfg.PolarAPIToken,
		OrganizationID: cfg.PolarOrgID,
		Timeout:        cfg.UpstreamTimeout,
	})
	if cfg.PolarAPIToken == "" || cfg.PolarOrgID == "" {
		obs.Logger.Warn("billing_credentials_missing", "effect", "every entitlement check denies access")
	}
	entitlements := service.NewEntitlementService(billing, a.Metrics)

	for _, source := range []string{config.SourceCatalog, config.SourceBilling} {
		if cfg.InsecureWebhooks(source) {
			obs.Logger.Warn("insecure_webhook_mode", "source", source, "effect", "signatures are not verified")
		}
	}
	webhooks := service.NewWebhookService(service.WebhookConfig{
		CatalogSecret:  cfg.WebhookSecret(config.SourceCatalog),
		BillingSecret:  cfg.WebhookSecret(config.SourceBilling),
		TrackedBranch:  cfg.GitHubBranch,
		CategoryPrefix: cfg.CatalogCategoryPrefix,
	}, versions, service.NewLogEventSink(obs.Logger), a.Metrics)

	if cfg.DownloadRateLimit > 0 {
		a.limiter = middleware.NewClientLimiter(cfg.DownloadRateLimit, cfg.DownloadRateBurst)
	}

	// Create controllers
	controllers := &router.Controllers{
		Catalog:     controller.NewCatalogController(versions),
		Download:    controller.NewDownloadController(entitlements, archive),
		Entitlement: controller.NewEntitlementController(entitlements),
		Webhook:     controller.NewWebhookController(webhooks),
	}

	// Setup routes
	a.Handler = router.SetupRoutes(controllers, router.Options{
		Metrics:         a.Metrics,
		MetricsHandler:  a.Metrics.Handler(),
		DownloadLimiter: a.limiter,
	})

	obs.Logger.Info("app_initialized",
		"catalog_backend", cfg.CatalogBackend,
		"version_floor", floor != nil,
		"archive_ttl", cfg.ArchiveCacheTTL.String(),
		"download_rate_limit", cfg.DownloadRateLimit,
	)
	return a, nil
}
