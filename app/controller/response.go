package controller

import (
	"encoding/json"
	"net/http"

	"no3d-library-api/obs"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON encodes payload with the given status
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		obs.Logger.Error("response_encode_failed", "error", err)
	}
}

// writeJSONError writes {error, message} with the given status
func writeJSONError(w http.ResponseWriter, status int, errMsg, message string) {
	writeJSON(w, status, errorBody{Error: errMsg, Message: message})
}

// methodNotAllowed answers 405 and advertises the allowed method
func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
}
