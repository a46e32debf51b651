package router

import (
	"net/http"

	"no3d-library-api/app/controller"
	"no3d-library-api/app/middleware"
	"no3d-library-api/metrics"
)

// Route paths served by the API
const (
	RoutePing             = "/ping"
	RouteMetrics          = "/metrics"
	RouteCatalogVersion   = "/catalog/version"
	RouteLibraryDownload  = "/library/download"
	RouteUserEntitlements = "/user/entitlements"
	RouteCatalogWebhook   = "/webhooks/catalog"
	RouteBillingWebhook   = "/webhooks/billing"
)

type Controllers struct {
	Catalog     *controller.CatalogController
	Download    *controller.DownloadController
	Entitlement *controller.EntitlementController
	Webhook     *controller.WebhookController
}

// Options carries the cross-cutting pieces wrapped around routes
type Options struct {
	Metrics         metrics.Metrics
	MetricsHandler  http.Handler
	DownloadLimiter *middleware.ClientLimiter
}

// pingHandler handles GET /ping
func pingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// SetupRoutes registers every route on a fresh mux and returns it wrapped in
// request id and logging middleware
func SetupRoutes(controllers *Controllers, opts Options) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	mux := http.NewServeMux()

	handle := func(route string, h http.HandlerFunc) {
		mux.Handle(route, middleware.WithMetrics(opts.Metrics, route, h))
	}

	// Ping endpoint
	handle(RoutePing, pingHandler)

	// Prometheus scrape endpoint
	if opts.MetricsHandler != nil {
		mux.Handle(RouteMetrics, opts.MetricsHandler)
	}

	// Catalog version polled by storefront clients
	handle(RouteCatalogVersion, controllers.Catalog.GetVersion)

	// Licensed library archive, limited per client
	mux.Handle(RouteLibraryDownload, middleware.WithMetrics(opts.Metrics, RouteLibraryDownload,
		middleware.RateLimit(opts.DownloadLimiter, http.HandlerFunc(controllers.Download.DownloadLibrary))))

	// Customer entitlements
	handle(RouteUserEntitlements, controllers.Entitlement.GetEntitlements)

	// Webhooks
	handle(RouteCatalogWebhook, controllers.Webhook.CatalogWebhook)
	handle(RouteBillingWebhook, controllers.Webhook.BillingWebhook)

	return middleware.WithRequestID(middleware.WithLogging(mux))
}
