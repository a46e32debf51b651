// Package config reads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog backends selectable with CATALOG_BACKEND
const (
	BackendGitHub = "github"
	BackendDrive  = "drive"
)

// Webhook sources
const (
	SourceCatalog = "catalog"
	SourceBilling = "billing"
)

// Config holds every knob the service reads at startup
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PolarAPIToken string
	PolarOrgID    string
	PolarAPIURL   string

	CatalogBackend        string
	GitHubToken           string
	GitHubOwner           string
	GitHubRepo            string
	GitHubBranch          string
	GitHubAPIURL          string
	DriveCredentialsPath  string
	DriveRootFolderID     string
	CatalogCategoryPrefix string
	CatalogVersionFile    string

	GitHubWebhookSecret string
	PolarWebhookSecret  string

	DatabaseURL string

	ArchiveCacheTTL     time.Duration
	ArchiveBuildTimeout time.Duration
	UpstreamTimeout     time.Duration
	DownloadRateLimit   float64
	DownloadRateBurst   int
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// durenv accepts Go duration strings ("90s", "1h") or a bare number of seconds.
func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return def
}

// Load collects configuration from environment with defaults.
func Load() Config {
	// PORT from some hosts includes a leading colon
	port := strings.TrimPrefix(getenv("PORT", "8080"), ":")

	return Config{
		Port:            port,
		Env:             getenv("ENV", "development"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),

		PolarAPIToken: getenv("POLAR_API_TOKEN", ""),
		PolarOrgID:    getenv("POLAR_ORG_ID", ""),
		PolarAPIURL:   strings.TrimSuffix(getenv("POLAR_API_URL", "https://api.polar.sh"), "/"),

		CatalogBackend:        strings.ToLower(getenv("CATALOG_BACKEND", BackendGitHub)),
		GitHubToken:           getenv("GITHUB_TOKEN", ""),
		GitHubOwner:           getenv("GITHUB_OWNER", "node-dojo"),
		GitHubRepo:            getenv("GITHUB_REPO", "no3d-tools-library"),
		GitHubBranch:          getenv("GITHUB_BRANCH", "main"),
		GitHubAPIURL:          strings.TrimSuffix(getenv("GITHUB_API_URL", "https://api.github.com"), "/"),
		DriveCredentialsPath:  getenv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		DriveRootFolderID:     getenv("DRIVE_ROOT_FOLDER_ID", ""),
		CatalogCategoryPrefix: getenv("CATALOG_CATEGORY_PREFIX", "Dojo"),
		CatalogVersionFile:    getenv("CATALOG_VERSION_FILE", "catalog.json"),

		GitHubWebhookSecret: getenv("GITHUB_WEBHOOK_SECRET", ""),
		PolarWebhookSecret:  getenv("POLAR_WEBHOOK_SECRET", ""),

		DatabaseURL: getenv("DATABASE_URL", ""),

		ArchiveCacheTTL:     durenv("ARCHIVE_CACHE_TTL", time.Hour),
		ArchiveBuildTimeout: durenv("ARCHIVE_BUILD_TIMEOUT", 5*time.Minute),
		UpstreamTimeout:     durenv("UPSTREAM_TIMEOUT", 15*time.Second),
		DownloadRateLimit:   floatenv("DOWNLOAD_RATE_LIMIT", 0),
		DownloadRateBurst:   atoienv("DOWNLOAD_RATE_BURST", 1),
	}
}

// IsProduction reports whether the production profile is active
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// WebhookSecret returns the shared secret for the given webhook source
func (c Config) WebhookSecret(source string) string {
	switch source {
	case SourceCatalog:
		return c.GitHubWebhookSecret
	case SourceBilling:
		return c.PolarWebhookSecret
	}
	return ""
}

// InsecureWebhooks reports whether signature checks are disabled for a source
func (c Config) InsecureWebhooks(source string) bool {
	return c.WebhookSecret(source) == ""
}

// Validate rejects combinations that must never reach a production deployment
func (c Config) Validate() error {
	switch c.CatalogBackend {
	case BackendGitHub:
	case BackendDrive:
		if c.DriveRootFolderID == "" {
			return fmt.Errorf("DRIVE_ROOT_FOLDER_ID is required when CATALOG_BACKEND=drive")
		}
	default:
		return fmt.Errorf("unsupported CATALOG_BACKEND %q (want %q or %q)", c.CatalogBackend, BackendGitHub, BackendDrive)
	}

	if c.IsProduction() {
		for _, source := range []string{SourceCatalog, SourceBilling} {
			if c.InsecureWebhooks(source) {
				return fmt.Errorf("%s webhook secret must be set in production", source)
			}
		}
	}
	return nil
}
