package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/youtube"
)

type Config struct {
	AccessKey string
	SecretKey string
	Region    string
	// Endpoint targets an S3 compatible service such as Spaces or MinIO.
	// Empty means AWS.
	Endpoint string
	Bucket   string
	Prefix   string
}

// Archive stores transcripts as JSON objects in an S3 bucket.
type Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

type archivedTranscript struct {
	Transcript *models.Transcript `json:"transcript"`
	SourceURL  string             `json:"source_url"`
	ArchivedAt time.Time          `json:"archived_at"`
}

func NewArchive(ctx context.Context, cfg Config) (*Archive, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (a *Archive) key(userID, videoID string) string {
	return path.Join(a.prefix, userID, videoID+".json")
}

// Archive writes t under <prefix>/<user id>/<video id>.json.
func (a *Archive) Archive(ctx context.Context, t *models.Transcript) error {
	data, err := json.Marshal(archivedTranscript{
		Transcript: t,
		SourceURL:  youtube.WatchURL(t.VideoID),
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %v", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(t.UserID, t.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload transcript: %w", err)
	}

	return nil
}
