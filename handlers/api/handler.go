package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/middleware"
	"github.com/nijaru/yt-transcripts/models"
)

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

// respondError writes err in the error envelope. Server side failures are
// logged with their cause; client errors only at debug.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errors.NewResponse(err, middleware.GetRequestID(r.Context()))

	logger := middleware.GetLogger(r.Context()).WithError(err).WithField("status", status)
	if appErr, ok := errors.As(err); ok && appErr.Op != "" {
		logger = logger.WithField("operation", appErr.Op)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request error")
	} else {
		logger.Debug("Request rejected")
	}

	respondJSON(w, r, status, body)
}

func readJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.InvalidInput("readJSON", err, "Request body is required")
		}
		return errors.InvalidInput("readJSON", err, "Invalid JSON format")
	}
	return nil
}

func currentUser(r *http.Request) (*models.User, error) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		return nil, errors.Unauthorized("currentUser", nil, "Authentication required")
	}
	return user, nil
}
