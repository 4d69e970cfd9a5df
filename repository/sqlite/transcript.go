package sqlite

import (
	"context"
	"database/sql"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

const (
	insertTranscriptQuery = `
        INSERT INTO transcripts (
            id, user_id, video_id, title, content,
            language, duration, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	transcriptColumns = `
        id, user_id, video_id, title, content,
        language, duration, created_at, updated_at
    `

	getTranscriptByUserAndVideoQuery = `SELECT` + transcriptColumns + `
        FROM transcripts WHERE user_id = ? AND video_id = ?
    `

	getTranscriptByIDQuery = `SELECT` + transcriptColumns + `
        FROM transcripts WHERE user_id = ? AND id = ?
    `

	listTranscriptsQuery = `SELECT` + transcriptColumns + `
        FROM transcripts
        WHERE user_id = ?
          AND (? = '' OR title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')
        ORDER BY created_at DESC, rowid DESC
        LIMIT ? OFFSET ?
    `

	countTranscriptsQuery = `
        SELECT COUNT(*) FROM transcripts
        WHERE user_id = ?
          AND (? = '' OR title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')
    `
)

type TranscriptRepository struct {
	db *DB
}

func NewTranscriptRepository(db *DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

func (r *TranscriptRepository) Create(ctx context.Context, t *models.Transcript) error {
	const op = "TranscriptRepository.Create"

	err := r.db.withRetry(ctx, func() error {
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
		return err
	})
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
	const op = "TranscriptRepository.FindByUserAndVideo"

	t, err := scanTranscript(r.db.db.QueryRowContext(ctx, getTranscriptByUserAndVideoQuery, userID, videoID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transcript")
	}
	return t, nil
}

func (r *TranscriptRepository) FindByID(ctx context.Context, userID, id string) (*models.Transcript, error) {
	const op = "TranscriptRepository.FindByID"

	t, err := scanTranscript(r.db.db.QueryRowContext(ctx, getTranscriptByIDQuery, userID, id))
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
	err := r.db.db.QueryRowContext(ctx, countTranscriptsQuery,
		userID, opts.Query, pattern, pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, errors.Internal(op, err, "Failed to count transcripts")
	}

	rows, err := r.db.db.QueryContext(ctx, listTranscriptsQuery,
		userID, opts.Query, pattern, pattern, opts.Limit, opts.Offset,
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTranscript(row rowScanner) (*models.Transcript, error) {
	t := &models.Transcript{}
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.VideoID,
		&t.Title,
		&t.Content,
		&t.Language,
		&t.Duration,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
