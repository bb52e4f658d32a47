package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Envelope is the standard response shape for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[httputil] JSON encode error: %v", err)
	}
}

// OK writes a 200 envelope with success=true.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes an envelope with success=false and the given status code.
// data may be nil.
func Fail(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: false, Message: message, Data: data})
}

// BadRequest writes a 400 envelope.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, message, nil)
}

// Unauthorized writes a 401 envelope.
func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, http.StatusUnauthorized, message, nil)
}

// NotFound writes a 404 envelope.
func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, message, nil)
}

// InternalError writes a 500 envelope. Logs the real error but returns a
// generic message to the client (never leak internals).
func InternalError(w http.ResponseWriter, err error) {
	log.Printf("[httputil] internal error: %v", err)
	Fail(w, http.StatusInternalServerError, "internal server error", nil)
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 envelope if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
