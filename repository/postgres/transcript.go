package postgres

import (
	"context"
	"database/sql"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

const (
	transcriptColumns = `
        id, user_id, video_id, title, content,
        language, duration, created_at, updated_at
    `

	insertTranscriptQuery = `
        INSERT INTO transcripts (` + transcriptColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	getTranscriptByUserAndVideoQuery = `SELECT` + transcriptColumns + `
        FROM transcripts WHERE user_id = $1 AND video_id = $2
    `

	getTranscriptByIDQuery = `SELECT` + transcriptColumns + `
        FROM transcripts WHERE user_id = $1 AND id = $2
    `

	transcriptFilter = `
        WHERE user_id = $1
          AND ($2 = '' OR title ILIKE $3 OR content ILIKE $3)
    `

	listTranscriptsQuery = `SELECT` + transcriptColumns + `
        FROM transcripts` + transcriptFilter + `
        ORDER BY created_at DESC, id DESC
        LIMIT $4 OFFSET $5
    `

	countTranscriptsQuery = `SELECT COUNT(*) FROM transcripts` + transcriptFilter
)

type TranscriptRepository struct {
	db *DB
}

func NewTranscriptRepository(db *DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

func (r *TranscriptRepository) Create(ctx context.Context, t *models.Transcript) error {
	const op = "TranscriptRepository.Create"

	_, err := r.db.db.ExecContext(ctx, insertTranscriptQuery,
		t.ID,
		t.UserID,
		t.VideoID,
		t.Title,
		t.Content,
		t.Language,
		t.Duration,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if err := mapError(err); err == repository.ErrDuplicate {
			return err
		}
		return errors.Internal(op, err, "Failed to save transcript")
	}
	return nil
}

func (r *TranscriptRepository) FindByUserAndVideo(
	ctx context.Context,
	userID, videoID string,
) (*models.Transcript, error) {
	return r.find(ctx, "TranscriptRepository.FindByUserAndVideo", getTranscriptByUserAndVideoQuery, userID, videoID)
}

func (r *TranscriptRepository) FindByID(ctx context.Context, userID, id string) (*models.Transcript, error) {
	return r.find(ctx, "TranscriptRepository.FindByID", getTranscriptByIDQuery, userID, id)
}

func (r *TranscriptRepository) find(ctx context.Context, op, query string, args ...interface{}) (*models.Transcript, error) {
	t, err := scanTranscript(r.db.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transcript")
	}
	return t, nil
}

func (r *TranscriptRepository) List(
	ctx context.Context,
	userID string,
	opts repository.ListOptions,
) ([]*models.Transcript, int, error) {
	const op = "TranscriptRepository.List"

	opts = opts.Normalize()
	pattern := likePattern(opts.Query)

	var total int
	if err := r.db.db.QueryRowContext(ctx, countTranscriptsQuery, userID, opts.Query, pattern).Scan(&total); err != nil {
		return nil, 0, errors.Internal(op, err, "Failed to count transcripts")
	}

	rows, err := r.db.db.QueryContext(ctx, listTranscriptsQuery,
		userID, opts.Query, pattern, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, errors.Internal(op, err, "Failed to list transcripts")
	}
	defer rows.Close()

	transcripts := make([]*models.Transcript, 0, opts.Limit)
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, 0, errors.Internal(op, err, "Failed to scan transcript")
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal(op, err, "Failed to iterate transcripts")
	}

	return transcripts, total, nil
}

func scanTranscript(row rowScanner) (*models.Transcript, error) {
	t := &models.Transcript{}
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.VideoID,
		&t.Title,
		&t.Content,
		&t.Language,
		&t.Duration,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return t, nil
}
