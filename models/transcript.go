package models

import (
	"time"
)

type Status string

// Ingestion is synchronous today so only StatusCompleted is ever produced;
// the other values are reserved for a queued pipeline.
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Transcript struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	VideoID   string    `json:"videoId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TranscriptSummary is returned by a successful ingestion.
type TranscriptSummary struct {
	ID      string `json:"id"`
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
	Status  Status `json:"status"`
}

func NewTranscriptSummary(t *Transcript) *TranscriptSummary {
	return &TranscriptSummary{
		ID:      t.ID,
		VideoID: t.VideoID,
		Title:   t.Title,
		Status:  StatusCompleted,
	}
}

// VideoMetadata is what the video host reports about a video.
type VideoMetadata struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ChannelTitle    string    `json:"channelTitle"`
	DurationSeconds int       `json:"durationSeconds"`
	Language        string    `json:"language"`
	PublishedAt     time.Time `json:"publishedAt"`
}

// Segment is one timed caption cue.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}
