package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"scenecast/internal/httpkit"
	"scenecast/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ErrChatOwnerMismatch is returned when a chat id is already owned by
// another user.
var ErrChatOwnerMismatch = errors.New("chat belongs to another owner")

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Get(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	err := r.db.QueryRow(ctx, `
		SELECT id, owner, title, created_at
		FROM chats
		WHERE id=$1
	`, id).Scan(&c.ID, &c.Owner, &c.Title, &c.CreatedAt)
	if err != nil {
		if httpkit.IsNoRows(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetOwned returns the chat only when owner owns it. Chats of other owners
// are reported as not found.
func (r *ChatRepository) GetOwned(ctx context.Context, id, owner string) (*models.Chat, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Owner != owner {
		return nil, ErrChatNotFound
	}
	return c, nil
}

// ListMessages returns the chat's turns oldest first.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, chat_id, role, content, video_url, created_at
		FROM messages
		WHERE chat_id=$1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.VideoURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
