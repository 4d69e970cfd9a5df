package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-transcripts/models"
)

var (
	ErrNotFound     = errors.New("video or caption track not found")
	ErrRateLimited  = errors.New("youtube rate limit exceeded")
	ErrUnavailable  = errors.New("youtube unavailable")
	ErrUnauthorized = errors.New("youtube credential rejected")
)

const maxBodySize = 8 << 20

type Config struct {
	APIKey            string
	APIBaseURL        string
	CaptionBaseURL    string
	Timeout           time.Duration
	DefaultLanguage   string
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to the YouTube Data API for metadata and the timedtext
// endpoint for caption tracks. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.Wrap(ErrUnauthorized, "API key is empty")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.CaptionBaseURL == "" {
		cfg.CaptionBaseURL = "https://video.google.com/timedtext"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}, nil
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title                string `json:"title"`
			Description          string `json:"description"`
			ChannelTitle         string `json:"channelTitle"`
			PublishedAt          string `json:"publishedAt"`
			DefaultLanguage      string `json:"defaultLanguage"`
			DefaultAudioLanguage string `json:"defaultAudioLanguage"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// FetchMetadata returns title, duration and language for videoID.
func (c *Client) FetchMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	const op = "Client.FetchMetadata"

	query := url.Values{}
	query.Set("part", "snippet,contentDetails")
	query.Set("id", videoID)
	query.Set("key", c.cfg.APIKey)
	endpoint := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/videos?" + query.Encode()

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(classifyAPIError(status, body), "%s: status %d", op, status)
	}

	var resp videoListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "%s: decoding response: %v", op, err)
	}
	if len(resp.Items) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s: video %s", op, videoID)
	}

	item := resp.Items[0]
	meta := &models.VideoMetadata{
		ID:              videoID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		ChannelTitle:    item.Snippet.ChannelTitle,
		DurationSeconds: ParseDuration(item.ContentDetails.Duration),
		Language:        firstNonEmpty(item.Snippet.DefaultAudioLanguage, item.Snippet.DefaultLanguage, c.cfg.DefaultLanguage),
	}
	if published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		meta.PublishedAt = published
	}

	return meta, nil
}

type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

// FetchSegments returns the caption cues for videoID ordered by start time.
// When no track exists for languageHint the base language tag and then the
// configured default language are tried.
func (c *Client) FetchSegments(ctx context.Context, videoID, languageHint string) ([]models.Segment, error) {
	const op = "Client.FetchSegments"

	var lastErr error
	for _, lang := range c.languageCandidates(languageHint) {
		segments, err := c.fetchTrack(ctx, videoID, lang)
		if err == nil {
			return segments, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, op)
		}
		c.logger.WithFields(logrus.Fields{
			"video_id": videoID,
			"language": lang,
		}).Debug("No caption track for language")
		lastErr = err
	}

	return nil, errors.Wrap(lastErr, op)
}

func (c *Client) fetchTrack(ctx context.Context, videoID, lang string) ([]models.Segment, error) {
	query := url.Values{}
	query.Set("v", videoID)
	query.Set("lang", lang)
	endpoint := c.cfg.CaptionBaseURL + "?" + query.Encode()

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(classifyAPIError(status, body), "timedtext status %d", status)
	}
	// timedtext answers 200 with an empty body when the track is missing.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no %s captions for %s", lang, videoID)
	}

	var track timedText
	if err := xml.Unmarshal(body, &track); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "decoding captions: %v", err)
	}

	segments := make([]models.Segment, 0, len(track.Texts))
	for _, t := range track.Texts {
		// Cue text arrives double escaped, e.g. &amp;#39;.
		text := strings.Join(strings.Fields(html.UnescapeString(t.Text)), " ")
		if text == "" {
			continue
		}
		segments = append(segments, models.Segment{
			Start:    t.Start,
			Duration: t.Duration,
			Text:     text,
		})
	}
	if len(segments) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "empty %s captions for %s", lang, videoID)
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	return segments, nil
}

func (c *Client) languageCandidates(hint string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(lang string) {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			return
		}
		seen[lang] = true
		out = append(out, lang)
	}

	add(hint)
	if i := strings.IndexAny(hint, "-_"); i > 0 {
		add(hint[:i])
	}
	add(c.cfg.DefaultLanguage)
	return out
}

// get performs a rate limited GET bounded by the client timeout. Transport
// failures are reported as ErrUnavailable.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, errors.Wrapf(ErrUnavailable, "waiting for rate limiter: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrUnavailable, "building request: %v", err)
	}
	req.Header.Set("Accept", "application/json, text/xml")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrUnavailable, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, 0, errors.Wrapf(ErrUnavailable, "reading body: %v", err)
	}

	c.logger.WithFields(logrus.Fields{
		"host":     req.URL.Host,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("YouTube request completed")

	return body, resp.StatusCode, nil
}

// classifyAPIError maps a non-200 provider answer onto the client's error
// kinds using the status and, for 400/403, the reported reason.
func classifyAPIError(status int, body []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	reason := ""
	if len(apiErr.Error.Errors) > 0 {
		reason = apiErr.Error.Errors[0].Reason
	}

	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusForbidden:
		switch reason {
		case "quotaExceeded", "rateLimitExceeded", "dailyLimitExceeded", "userRateLimitExceeded":
			return ErrRateLimited
		case "videoNotFound":
			return ErrNotFound
		}
		return ErrUnauthorized
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusBadRequest:
		if reason == "keyInvalid" || strings.Contains(apiErr.Error.Message, "API key") {
			return ErrUnauthorized
		}
		return ErrNotFound
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrUnavailable
	}
	return errors.Wrap(ErrUnavailable, fmt.Sprintf("unexpected status %d", status))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
