package controller

import (
	"errors"
	"net/http"
	"strings"

	"no3d-library-api/obs"
	"no3d-library-api/service"
)

// EntitlementController handles HTTP requests for customer entitlements
type EntitlementController struct {
	entitlements service.EntitlementServiceInterface
}

// NewEntitlementController creates a new EntitlementController
func NewEntitlementController(entitlements service.EntitlementServiceInterface) *EntitlementController {
	return &EntitlementController{entitlements: entitlements}
}

// GetEntitlements handles GET /user/entitlements?customer_id=
func (c *EntitlementController) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		writeJSONError(w, http.StatusBadRequest, "Customer ID required", "")
		return
	}

	resp, err := c.entitlements.Entitlements(r.Context(), customerID)
	if errors.Is(err, service.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "Customer not found", "")
		return
	}
	if err != nil {
		obs.Logger.Error("entitlements_failed", "customer_id", customerID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
