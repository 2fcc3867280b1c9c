package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"scenecast/internal/httpkit"
	"scenecast/internal/models"
)

var ErrVideoNotFound = errors.New("video not found")

type VideoRepository struct {
	db *pgxpool.Pool
}

func NewVideoRepository(db *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Get(ctx context.Context, id string) (*models.Video, error) {
	var v models.Video
	err := r.db.QueryRow(ctx, `
		SELECT id, chat_id, message_id, video_url, code, summary, duration_seconds, created_at, updated_at
		FROM videos
		WHERE id=$1
	`, id).Scan(
		&v.ID,
		&v.ChatID,
		&v.MessageID,
		&v.VideoURL,
		&v.Code,
		&v.Summary,
		&v.DurationSeconds,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if httpkit.IsNoRows(err) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return &v, nil
}

// GetOwned returns the video only when its chat belongs to owner.
func (r *VideoRepository) GetOwned(ctx context.Context, id, owner string) (*models.Video, error) {
	var chatOwner string
	err := r.db.QueryRow(ctx, `
		SELECT c.owner
		FROM videos v
		JOIN chats c ON c.id = v.chat_id
		WHERE v.id=$1
	`, id).Scan(&chatOwner)
	if err != nil {
		if httpkit.IsNoRows(err) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	if chatOwner != owner {
		return nil, ErrVideoNotFound
	}
	return r.Get(ctx, id)
}

// UpdateMedia stores the replaced location and the merged duration on the
// video and on the assistant message that announced it.
func (r *VideoRepository) UpdateMedia(ctx context.Context, id, videoURL string, durationSeconds int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var messageID string
	err = tx.QueryRow(ctx, `
		UPDATE videos
		SET video_url=$2, duration_seconds=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING message_id
	`, id, videoURL, durationSeconds).Scan(&messageID)
	if err != nil {
		if httpkit.IsNoRows(err) {
			return ErrVideoNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE messages SET video_url=$2 WHERE id=$1`, messageID, videoURL); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
