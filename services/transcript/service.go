package transcript

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
	"github.com/nijaru/yt-transcripts/youtube"
)

type service struct {
	repo     repository.TranscriptRepository
	provider Provider
	archiver Archiver
	logger   *logrus.Logger
	now      func() time.Time
}

type Option func(*service)

// WithArchiver enables best effort archiving of every stored transcript.
func WithArchiver(a Archiver) Option {
	return func(s *service) {
		s.archiver = a
	}
}

func NewService(
	repo repository.TranscriptRepository,
	provider Provider,
	logger *logrus.Logger,
	opts ...Option,
) Service {
	s := &service{
		repo:     repo,
		provider: provider,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Ingest(ctx context.Context, userID, rawURL string) (*models.TranscriptSummary, error) {
	const op = "TranscriptService.Ingest"

	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, errors.InvalidInput(op, err, "Invalid YouTube URL")
	}

	logger := s.logger.WithFields(logrus.Fields{
		"operation": op,
		"user_id":   userID,
		"video_id":  videoID,
	})
	logger.Info("Starting transcript ingestion")

	// Fast path only; the unique index decides below.
	if _, err := s.repo.FindByUserAndVideo(ctx, userID, videoID); err == nil {
		return nil, errors.Conflict(op, nil, "Transcript already exists")
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.Internal(op, err, "Failed to check existing transcript")
	}

	meta, err := s.provider.FetchMetadata(ctx, videoID)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch video metadata")
		return nil, providerError(op, err)
	}

	segments, err := s.provider.FetchSegments(ctx, videoID, meta.Language)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch captions")
		return nil, providerError(op, err)
	}

	title := meta.Title
	if title == "" {
		title = videoID
	}

	now := s.now()
	t := &models.Transcript{
		ID:        uuid.New().String(),
		UserID:    userID,
		VideoID:   videoID,
		Title:     title,
		Content:   JoinSegments(segments),
		Language:  meta.Language,
		Duration:  meta.DurationSeconds,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			logger.Info("Lost race to concurrent ingestion")
			return nil, errors.Conflict(op, err, "Transcript already exists")
		}
		logger.WithError(err).Error("Failed to store transcript")
		return nil, errors.Internal(op, err, "Failed to save transcript")
	}

	logger.WithFields(logrus.Fields{
		"transcript_id": t.ID,
		"segments":      len(segments),
		"duration":      t.Duration,
	}).Info("Transcript stored")

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, t); err != nil {
			logger.WithError(err).Warn("Failed to archive transcript")
		}
	}

	return models.NewTranscriptSummary(t), nil
}

func (s *service) List(ctx context.Context, userID string, opts repository.ListOptions) (*ListResult, error) {
	const op = "TranscriptService.List"

	opts = opts.Normalize()
	opts.Query = strings.TrimSpace(opts.Query)

	transcripts, total, err := s.repo.List(ctx, userID, opts)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to list transcripts")
	}

	return &ListResult{
		Transcripts: transcripts,
		Total:       total,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}, nil
}

func (s *service) Get(ctx context.Context, userID, id string) (*models.Transcript, error) {
	const op = "TranscriptService.Get"

	if id == "" {
		return nil, errors.InvalidInput(op, nil, "ID is required")
	}

	t, err := s.repo.FindByID(ctx, userID, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound(op, err, "Transcript not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to load transcript")
	}
	return t, nil
}

// JoinSegments concatenates segment texts in temporal order with single
// spaces.
func JoinSegments(segments []models.Segment) string {
	ordered := make([]models.Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	parts := make([]string, 0, len(ordered))
	for _, seg := range ordered {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func providerError(op string, err error) error {
	switch {
	case stderrors.Is(err, youtube.ErrNotFound):
		return errors.VideoNotFound(op, err, "Video or captions not found")
	case stderrors.Is(err, youtube.ErrRateLimited):
		return errors.ProviderUnavailable(op, err, "Video provider rate limit reached, try again later")
	case stderrors.Is(err, youtube.ErrUnavailable):
		return errors.ProviderUnavailable(op, err, "Video provider unavailable, try again later")
	case stderrors.Is(err, youtube.ErrUnauthorized):
		return errors.ProviderMisconfigured(op, err, "Video provider rejected the configured credential")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.ProviderUnavailable(op, err, "Video provider timed out")
	}
	return errors.Internal(op, err, "Failed to fetch transcript")
}
