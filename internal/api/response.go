package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Machine-readable error codes
const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodeInvalidInput = "invalid_input"
	CodeInternal     = "internal_error"
	CodeUnauthorized = "unauthorized"
)

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("API: failed to encode JSON response: %v", err)
		}
	}
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    CodeValidation,
		Details: fieldErrors,
	})
}

// RespondBodyError writes a 400 for a request body DecodeJSON rejected
func RespondBodyError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: CodeInvalidInput}
	var bodyErr *BodyError
	if errors.As(err, &bodyErr) && bodyErr.Field != "" {
		resp.Details = map[string]string{bodyErr.Field: bodyErr.Message}
	}
	RespondJSON(w, http.StatusBadRequest, resp)
}

// RespondNotFound writes a 404 with the not_found code
func RespondNotFound(w http.ResponseWriter, message string) {
	RespondErrorWithCode(w, http.StatusNotFound, CodeNotFound, message)
}

// RespondInternalError logs err and writes a generic 500 so storage
// details never reach the client.
func RespondInternalError(w http.ResponseWriter, op string, err error) {
	log.Printf("API: %s failed: %v", op, err)
	RespondErrorWithCode(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

// RespondNoContent writes a 204 No Content response with no body.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
