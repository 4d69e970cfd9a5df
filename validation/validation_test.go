package validation

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/repository"
)

func TestValidateURL(t *testing.T) {
	validator := NewValidator(0)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "Empty URL", url: "", wantErr: true},
		{name: "Whitespace only", url: "   ", wantErr: true},
		{name: "JavaScript URL", url: "javascript:alert(1)", wantErr: true},
		{name: "Non-HTTP scheme", url: "ftp://youtube.com/watch?v=dQw4w9WgXcQ", wantErr: true},
		{name: "Non-YouTube URL", url: "https://example.com/watch?v=dQw4w9WgXcQ", wantErr: true},
		{name: "Lookalike host", url: "https://notyoutube.com/watch?v=dQw4w9WgXcQ", wantErr: true},
		{name: "Too long", url: "https://youtube.com/watch?v=" + strings.Repeat("a", maxURLLength), wantErr: true},
		{name: "Valid YouTube URL", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "Valid YouTube shorts URL", url: "https://www.youtube.com/shorts/dQw4w9WgXcQ"},
		{name: "Valid YouTube embed URL", url: "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{name: "Valid YouTube short URL", url: "https://youtu.be/dQw4w9WgXcQ"},
		{name: "Mobile host", url: "https://m.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "No scheme", url: "youtu.be/dQw4w9WgXcQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.IsKind(err, errors.KindBadInput) {
				t.Errorf("expected BadInput, got %v", err)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	validator := NewValidator(16)

	tests := []struct {
		name    string
		method  string
		ctype   string
		body    string
		opts    RequestValidationOpts
		wantErr bool
	}{
		{
			name:   "valid JSON post",
			method: http.MethodPost,
			ctype:  "application/json; charset=utf-8",
			body:   `{"url":"x"}`,
			opts:   RequestValidationOpts{AllowedMethods: []string{http.MethodPost}, RequireJSON: true},
		},
		{
			name:    "method not allowed",
			method:  http.MethodGet,
			opts:    RequestValidationOpts{AllowedMethods: []string{http.MethodPost}},
			wantErr: true,
		},
		{
			name:    "missing content type",
			method:  http.MethodPost,
			body:    `{}`,
			opts:    RequestValidationOpts{RequireJSON: true},
			wantErr: true,
		},
		{
			name:    "body over validator default",
			method:  http.MethodPost,
			ctype:   "application/json",
			body:    strings.Repeat("a", 17),
			wantErr: true,
		},
		{
			name:   "explicit limit overrides default",
			method: http.MethodPost,
			ctype:  "application/json",
			body:   strings.Repeat("a", 17),
			opts:   RequestValidationOpts{MaxContentLength: 64},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			err := validator.ValidateRequest(req, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseListOptions(t *testing.T) {
	validator := NewValidator(0)

	tests := []struct {
		name    string
		query   string
		want    repository.ListOptions
		wantErr bool
	}{
		{name: "defaults", query: "", want: repository.ListOptions{Limit: repository.DefaultListLimit}},
		{name: "search and page", query: "q=+golang+&limit=5&offset=10", want: repository.ListOptions{Query: "golang", Limit: 5, Offset: 10}},
		{name: "limit clamped", query: "limit=1000", want: repository.ListOptions{Limit: repository.MaxListLimit}},
		{name: "non numeric limit", query: "limit=ten", wantErr: true},
		{name: "negative offset", query: "offset=-1", wantErr: true},
		{name: "query too long", query: "q=" + strings.Repeat("x", maxQueryLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			got, err := validator.ParseListOptions(values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseListOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseListOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidatePriceID(t *testing.T) {
	validator := NewValidator(0)

	for _, id := range []string{"", "   ", "price 1", strings.Repeat("p", maxPriceIDLength+1)} {
		if err := validator.ValidatePriceID(id); err == nil {
			t.Errorf("expected %q to be rejected", id)
		}
	}
	if err := validator.ValidatePriceID("price_1PqR2s"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
