package apierror

import (
	"encoding/json"
	"net/http"
)

// Error is the JSON error body of the status API.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// ToJSON renders the error in the {"success":false,"error":{...}} envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		Error   *Error `json:"error"`
	}{Error: e})
	return data
}

// Write sends the error as a JSON response.
func (e *Error) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write(e.ToJSON())
}

func newError(status int, code, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, "NOT_FOUND", message, "Resource not found")
}

// InternalError creates a 500 error.
func InternalError(message string) *Error {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, "An unexpected error occurred")
}

// ServiceUnavailable creates a 503 error; /api/v1/ready uses it while an
// account is still logging on.
func ServiceUnavailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, "Service temporarily unavailable")
}
