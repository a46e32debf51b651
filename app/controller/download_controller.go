package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"no3d-library-api/obs"
	"no3d-library-api/service"
)

// DownloadController handles HTTP requests for the licensed library archive
type DownloadController struct {
	entitlements service.EntitlementServiceInterface
	archive      service.ArchiveCacheInterface
}

// NewDownloadController creates a new DownloadController
func NewDownloadController(entitlements service.EntitlementServiceInterface, archive service.ArchiveCacheInterface) *DownloadController {
	return &DownloadController{
		entitlements: entitlements,
		archive:      archive,
	}
}

// DownloadLibrary handles GET /library/download?customer_id=
// The access check runs before the cache is touched, and the archive is only
// written once it is fully built.
func (c *DownloadController) DownloadLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		writeJSONError(w, http.StatusBadRequest, "Customer ID required", "")
		return
	}

	if !c.entitlements.HasAccess(r.Context(), customerID) {
		obs.Logger.Info("library_download_denied", "customer_id", customerID)
		writeJSONError(w, http.StatusForbidden, "Active subscription required",
			"You need an active subscription to download the library")
		return
	}

	artifact, err := c.archive.Get(r.Context())
	if err != nil {
		obs.Logger.Error("library_download_failed", "customer_id", customerID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	version := strconv.FormatInt(artifact.Version.Version, 10)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="library-%s.zip"`, version))
	w.Header().Set("Content-Length", strconv.Itoa(artifact.Size()))
	w.Header().Set("X-Catalog-Version", version)
	w.Header().Set("ETag", `"`+artifact.SHA256+`"`)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(artifact.Bytes); err != nil {
		obs.Logger.Warn("library_download_interrupted", "customer_id", customerID, "error", err)
		return
	}
	obs.Logger.Info("library_download_served", "customer_id", customerID, "version", version, "bytes", artifact.Size())
}
