package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusCreated, CreateResourceResponse{ID: "web-1"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	// json.Encoder appends a newline
	if got := w.Body.String(); got != "{\"id\":\"web-1\"}\n" {
		t.Errorf("body = %q", got)
	}

	w = httptest.NewRecorder()
	RespondJSON(w, http.StatusOK, nil)
	if w.Body.Len() != 0 {
		t.Errorf("nil data should write no body, got %q", w.Body.String())
	}
}

func TestErrorResponders(t *testing.T) {
	tests := []struct {
		name        string
		respond     func(w http.ResponseWriter)
		wantStatus  int
		wantCode    string
		wantError   string
		wantDetails map[string]string
	}{
		{
			name:       "plain error",
			respond:    func(w http.ResponseWriter) { RespondError(w, http.StatusUnauthorized, "Missing authentication token") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "Missing authentication token",
		},
		{
			name:       "error with code",
			respond:    func(w http.ResponseWriter) { RespondErrorWithCode(w, http.StatusBadRequest, CodeInvalidInput, "bad") },
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidInput,
			wantError:  "bad",
		},
		{
			name: "validation",
			respond: func(w http.ResponseWriter) {
				RespondValidationError(w, map[string]string{"credentials.ssh_key": "is required"})
			},
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    CodeValidation,
			wantError:   "Validation failed",
			wantDetails: map[string]string{"credentials.ssh_key": "is required"},
		},
		{
			name: "body error with field",
			respond: func(w http.ResponseWriter) {
				RespondBodyError(w, &BodyError{Field: "threshold", Message: "expected float64"})
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    CodeInvalidInput,
			wantError:   "threshold: expected float64",
			wantDetails: map[string]string{"threshold": "expected float64"},
		},
		{
			name:       "body error without field",
			respond:    func(w http.ResponseWriter) { RespondBodyError(w, &BodyError{Message: "request body is empty"}) },
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidInput,
			wantError:  "request body is empty",
		},
		{
			name:       "not found",
			respond:    func(w http.ResponseWriter) { RespondNotFound(w, "Resource not found") },
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNotFound,
			wantError:  "Resource not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.respond(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Code != tt.wantCode || resp.Error != tt.wantError {
				t.Errorf("response = %+v, want code %q error %q", resp, tt.wantCode, tt.wantError)
			}
			if len(resp.Details) != len(tt.wantDetails) {
				t.Errorf("details = %v, want %v", resp.Details, tt.wantDetails)
			}
			for k, v := range tt.wantDetails {
				if resp.Details[k] != v {
					t.Errorf("details[%s] = %q, want %q", k, resp.Details[k], v)
				}
			}
		})
	}
}

func TestErrorResponse_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: "not found"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(data) != `{"error":"not found"}` {
		t.Errorf("json = %s", data)
	}
}

func TestRespondInternalError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	RespondInternalError(w, "list resources", errors.New("pq: relation \"resources\" does not exist"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != CodeInternal || resp.Error != "Internal server error" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if strings.Contains(w.Body.String(), "relation") {
		t.Error("storage error leaked into response")
	}
}

func TestRespondNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	RespondNoContent(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body length = %d, want 0", w.Body.Len())
	}
}
