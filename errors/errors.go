package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the machine readable error code returned to API callers.
type Kind string

const (
	KindBadInput            Kind = "BadInput"
	KindUnauthorized        Kind = "Unauthorized"
	KindNotFound            Kind = "NotFound"
	KindVideoNotFound       Kind = "VideoNotFound"
	KindAlreadyExists       Kind = "AlreadyExists"
	KindRateLimited         Kind = "RateLimited"
	KindProviderUnavailable Kind = "ProviderUnavailable"
	KindProviderConfig      Kind = "ProviderMisconfigured"
	KindInternal            Kind = "Internal"
)

type AppError struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func E(op string, err error, message string, code int, kind Kind) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusBadRequest, KindBadInput)
}

func Unauthorized(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusUnauthorized, KindUnauthorized)
}

func NotFound(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusNotFound, KindNotFound)
}

func VideoNotFound(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusNotFound, KindVideoNotFound)
}

func Conflict(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusConflict, KindAlreadyExists)
}

func RateLimited(op string, message string) *AppError {
	return E(op, nil, message, http.StatusTooManyRequests, KindRateLimited)
}

// ProviderUnavailable marks a transient upstream failure the caller may retry.
func ProviderUnavailable(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusBadGateway, KindProviderUnavailable)
}

// ProviderMisconfigured marks an upstream credential rejection. Retrying will
// not help until the deployment is fixed.
func ProviderMisconfigured(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusInternalServerError, KindProviderConfig)
}

func Internal(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusInternalServerError, KindInternal)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
