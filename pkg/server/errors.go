package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/piiscan/analyzer/pkg/models"
)

// APIError is the body of every error response. Used for swagger documentation.
type APIError struct {
	Detail string `json:"detail"`
}

// statusFor maps a failure to its response status. Validation failures and engine failures the
// engine tagged as client-caused are 400; everything else is 500.
func statusFor(err error) int {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	var engineErr *models.EngineError
	if errors.As(err, &engineErr) && engineErr.ClientCaused {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// renderError logs err and writes it as {"detail": "..."}.
func renderError(w http.ResponseWriter, r *http.Request, err error, correlationID string) {
	status := statusFor(err)

	fields := logrus.Fields{
		"endpoint": r.URL.Path,
		"status":   status,
		"error":    err.Error(),
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		fields["request_id"] = requestID
	}
	entry := log.WithFields(fields)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	body, _ := json.Marshal(APIError{Detail: err.Error()})
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Debugf("failed to write response: %v", err)
	}
}
