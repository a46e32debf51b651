package controller

import (
	"net/http"

	"no3d-library-api/service"
)

// CatalogController handles HTTP requests for catalog metadata
type CatalogController struct {
	versions service.CatalogVersionServiceInterface
}

// NewCatalogController creates a new CatalogController
func NewCatalogController(versions service.CatalogVersionServiceInterface) *CatalogController {
	return &CatalogController{versions: versions}
}

// GetVersion handles GET /catalog/version.
// Storefront clients poll it to detect library updates.
func (c *CatalogController) GetVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, c.versions.Current(r.Context()))
}
