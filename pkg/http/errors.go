package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Success            bool   `json:"success"`
	Error              string `json:"error"`                        // Machine-readable error code
	Message            string `json:"message"`                      // Human-readable message
	Details            string `json:"details,omitempty"`            // Optional additional context
	MinutesUntilUnlock *int   `json:"minutesUntilUnlock,omitempty"` // Set on 423 responses
	WaitTimeSeconds    *int   `json:"waitTimeSeconds,omitempty"`    // Set on throttled resends
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	writeErrorResponse(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteAccountLocked writes a 423 carrying the minutes left on the lock
func WriteAccountLocked(w http.ResponseWriter, message string, minutesUntilUnlock int) {
	writeErrorResponse(w, http.StatusLocked, ErrorResponse{
		Error:              "account_locked",
		Message:            message,
		MinutesUntilUnlock: &minutesUntilUnlock,
	})
}

// WriteRetryAfter writes a 429 with a Retry-After header and waitTimeSeconds in the body
func WriteRetryAfter(w http.ResponseWriter, errorCode, message string, waitTimeSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(waitTimeSeconds))
	writeErrorResponse(w, http.StatusTooManyRequests, ErrorResponse{
		Error:           errorCode,
		Message:         message,
		WaitTimeSeconds: &waitTimeSeconds,
	})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

func WriteGone(w http.ResponseWriter, errorCode, message string) {
	WriteError(w, http.StatusGone, errorCode, message)
}

func WriteNotImplemented(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", message)
}
