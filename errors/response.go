package errors

import (
	"net/http"
	"time"
)

// Response is the JSON envelope every failed API call returns.
type Response struct {
	Error Detail `json:"error"`
}

type Detail struct {
	Code      Kind      `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResponse builds the envelope for err. Anything that is not an AppError
// is reported as a generic internal error so causes never leak to callers.
func NewResponse(err error, requestID string) (int, Response) {
	appErr, ok := As(err)
	if !ok {
		appErr = Internal("", err, "Internal server error")
	}

	code := appErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return code, Response{Error: Detail{
		Code:      appErr.Kind,
		Message:   appErr.Message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}}
}
