package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/repository"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	maxURLLength        = 2048
	maxQueryLength      = 200
	maxPriceIDLength    = 255
)

var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

type Validator struct {
	maxBodyBytes int64
}

func NewValidator(maxBodyBytes int64) *Validator {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Validator{maxBodyBytes: maxBodyBytes}
}

func (v *Validator) MaxBodyBytes() int64 {
	return v.maxBodyBytes
}

// ValidateURL rejects input that cannot be a YouTube link before the resolver
// looks for a video id in it. Links without a scheme are accepted.
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}
	if len(urlStr) > maxURLLength {
		return errors.InvalidInput(op, nil, "URL is too long")
	}

	candidate := urlStr
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	if !isYouTubeHost(parsedURL.Hostname()) {
		return errors.InvalidInput(op, nil, "Only YouTube URLs are supported")
	}

	return nil
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	MaxContentLength int64
	AllowedMethods   []string
	RequireJSON      bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.InvalidInput(op, nil, fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}

	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.InvalidInput(op, nil, "Content-Type must be application/json")
		}
	}

	maxLength := opts.MaxContentLength
	if maxLength <= 0 {
		maxLength = v.maxBodyBytes
	}
	if r.ContentLength > maxLength {
		return errors.InvalidInput(op, nil, "Request body too large")
	}

	return nil
}

// ParseListOptions reads q, limit and offset from a query string. Limits
// above the maximum are clamped; malformed or negative numbers are rejected.
func (v *Validator) ParseListOptions(query url.Values) (repository.ListOptions, error) {
	const op = "Validator.ParseListOptions"

	opts := repository.ListOptions{Query: strings.TrimSpace(query.Get("q"))}
	if len(opts.Query) > maxQueryLength {
		return opts, errors.InvalidInput(op, nil, "Search query is too long")
	}

	var err error
	if opts.Limit, err = nonNegativeInt(query.Get("limit")); err != nil {
		return opts, errors.InvalidInput(op, err, "limit must be a non-negative integer")
	}
	if opts.Offset, err = nonNegativeInt(query.Get("offset")); err != nil {
		return opts, errors.InvalidInput(op, err, "offset must be a non-negative integer")
	}

	return opts.Normalize(), nil
}

func nonNegativeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

// ValidatePriceID checks the shape of a billing price identifier.
func (v *Validator) ValidatePriceID(priceID string) error {
	const op = "Validator.ValidatePriceID"

	if strings.TrimSpace(priceID) == "" {
		return errors.InvalidInput(op, nil, "Price ID is required")
	}
	if len(priceID) > maxPriceIDLength || strings.ContainsAny(priceID, " \t\r\n") {
		return errors.InvalidInput(op, nil, "Invalid price ID")
	}
	return nil
}
