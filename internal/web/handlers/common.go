package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Error type identifiers returned in the error_type field of failed responses.
// Clients dispatch on these instead of parsing human-readable messages.
const (
	ErrTypeInvalidUpload       = "INVALID_UPLOAD"
	ErrTypeNoFaceDetected      = "NO_FACE_DETECTED"
	ErrTypeIndexNotReady       = "INDEX_NOT_READY"
	ErrTypeNoComparableEntries = "NO_COMPARABLE_ENTRIES"
	ErrTypeInternal            = "INTERNAL_ERROR"
)

// MaxUploadSize limits the size of an uploaded query photo.
const MaxUploadSize = 16 << 20 // 16 MB

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends a failed response with a machine-readable error type
// and a human-readable message.
func respondError(w http.ResponseWriter, status int, errorType, message string) {
	respondJSON(w, status, map[string]any{
		"success":    false,
		"error_type": errorType,
		"message":    message,
	})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
