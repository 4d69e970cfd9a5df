package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("cause error")
	err := Internal("Test.Op", cause, "test message")

	expected := "test message: cause error"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
	if err.Unwrap() != cause {
		t.Errorf("expected Unwrap to return the cause")
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := InvalidInput("Test.Op", nil, "test message")
	if err.Error() != "test message" {
		t.Errorf("expected error string 'test message', got '%s'", err.Error())
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code int
		kind Kind
	}{
		{"invalid input", InvalidInput("op", nil, "bad"), http.StatusBadRequest, KindBadInput},
		{"unauthorized", Unauthorized("op", nil, "nope"), http.StatusUnauthorized, KindUnauthorized},
		{"not found", NotFound("op", nil, "missing"), http.StatusNotFound, KindNotFound},
		{"video not found", VideoNotFound("op", nil, "missing"), http.StatusNotFound, KindVideoNotFound},
		{"conflict", Conflict("op", nil, "dup"), http.StatusConflict, KindAlreadyExists},
		{"rate limited", RateLimited("op", "slow down"), http.StatusTooManyRequests, KindRateLimited},
		{"provider unavailable", ProviderUnavailable("op", nil, "down"), http.StatusBadGateway, KindProviderUnavailable},
		{"provider misconfigured", ProviderMisconfigured("op", nil, "bad key"), http.StatusInternalServerError, KindProviderConfig},
		{"internal", Internal("op", nil, "boom"), http.StatusInternalServerError, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.err.Code)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, tt.err.Kind)
			}
		})
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := Conflict("Repo.Create", nil, "duplicate")
	wrapped := fmt.Errorf("ingest: %w", inner)

	if !IsKind(wrapped, KindAlreadyExists) {
		t.Errorf("expected wrapped error to be AlreadyExists")
	}
	if IsKind(wrapped, KindBadInput) {
		t.Errorf("did not expect wrapped error to be BadInput")
	}
	if IsKind(fmt.Errorf("plain"), KindInternal) {
		t.Errorf("plain errors carry no kind")
	}
}

func TestNewResponse(t *testing.T) {
	code, body := NewResponse(VideoNotFound("Svc.Op", fmt.Errorf("no items"), "Video not found"), "req-1")
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if body.Error.Code != KindVideoNotFound || body.Error.Message != "Video not found" || body.Error.RequestID != "req-1" {
		t.Errorf("unexpected body %+v", body.Error)
	}
	if body.Error.Timestamp.IsZero() {
		t.Errorf("expected timestamp to be set")
	}

	code, body = NewResponse(fmt.Errorf("wrapped: %w", Conflict("op", nil, "dup")), "")
	if code != http.StatusConflict || body.Error.Code != KindAlreadyExists {
		t.Errorf("expected wrapped AppError to be honoured, got %d %s", code, body.Error.Code)
	}

	code, body = NewResponse(fmt.Errorf("secret connection string"), "req-2")
	if code != http.StatusInternalServerError || body.Error.Code != KindInternal {
		t.Errorf("expected internal error, got %d %s", code, body.Error.Code)
	}
	if body.Error.Message != "Internal server error" {
		t.Errorf("cause leaked into message: %q", body.Error.Message)
	}
}
