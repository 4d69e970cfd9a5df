package transcript

import (
	"context"

	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

type Service interface {
	// Ingest resolves rawURL, fetches the video's captions and stores them
	// once for userID.
	Ingest(ctx context.Context, userID, rawURL string) (*models.TranscriptSummary, error)

	// List returns the caller's transcripts newest first.
	List(ctx context.Context, userID string, opts repository.ListOptions) (*ListResult, error)

	// Get returns one transcript owned by userID.
	Get(ctx context.Context, userID, id string) (*models.Transcript, error)
}

// Provider is the video host the captions come from.
type Provider interface {
	FetchMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error)
	FetchSegments(ctx context.Context, videoID, languageHint string) ([]models.Segment, error)
}

// Archiver keeps a copy of stored transcripts outside the database.
type Archiver interface {
	Archive(ctx context.Context, t *models.Transcript) error
}

type ListResult struct {
	Transcripts []*models.Transcript `json:"transcripts"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}
