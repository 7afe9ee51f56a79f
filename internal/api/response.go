package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope statuses.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// duplicateKeyCode is reported for uniqueness conflicts.
const duplicateKeyCode = 11000

type envelope struct {
	Status  string      `json:"status"`
	Results *int        `json:"results,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    any         `json:"data,omitempty"`
	Error   *errorField `json:"error,omitempty"`
}

type errorField struct {
	Code int `json:"code"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonSuccess wraps data in the success envelope.
func jsonSuccess(w http.ResponseWriter, status int, data any) {
	jsonResponse(w, status, envelope{Status: statusSuccess, Data: data})
}

// jsonList writes a page of results in the success envelope.
func jsonList(w http.ResponseWriter, docs any, n int) {
	jsonResponse(w, http.StatusOK, envelope{
		Status:  statusSuccess,
		Results: &n,
		Data:    map[string]any{"data": docs},
	})
}

// jsonError writes a JSON error response. 4xx responses are failures of
// the request, 5xx errors of the server.
func jsonError(w http.ResponseWriter, status int, message string) {
	s := statusFail
	if status >= 500 {
		s = statusError
	}
	jsonResponse(w, status, envelope{Status: s, Message: message})
}

// jsonErrorCode writes a failure carrying a machine-readable code.
func jsonErrorCode(w http.ResponseWriter, status int, message string, code int) {
	jsonResponse(w, status, envelope{Status: statusFail, Message: message, Error: &errorField{Code: code}})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(target)
}
