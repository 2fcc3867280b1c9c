package repositories

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenecast/internal/codegen"
	"scenecast/internal/pipeline"
)

// GenerationRecorder persists a successful generation: the chat (created on
// first use), the user prompt, the assistant reply and the video row.
type GenerationRecorder struct {
	db *pgxpool.Pool
}

func NewGenerationRecorder(db *pgxpool.Pool) *GenerationRecorder {
	return &GenerationRecorder{db: db}
}

func (r *GenerationRecorder) Record(ctx context.Context, o pipeline.Outcome) (pipeline.Record, error) {
	rec := pipeline.Record{
		UserMessageID:      uuid.NewString(),
		AssistantMessageID: uuid.NewString(),
		VideoID:            uuid.NewString(),
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return pipeline.Record{}, fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		INSERT INTO chats (id, owner, title)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING
	`, o.ChatID, o.Owner, chatTitle(o.Prompt)); err != nil {
		return pipeline.Record{}, fmt.Errorf("ensure chat: %w", err)
	}

	var owner string
	if err := tx.QueryRow(ctx, `SELECT owner FROM chats WHERE id=$1`, o.ChatID).Scan(&owner); err != nil {
		return pipeline.Record{}, fmt.Errorf("load chat owner: %w", err)
	}
	if owner != o.Owner {
		return pipeline.Record{}, ErrChatOwnerMismatch
	}

	// Two statements in one transaction share NOW(); the explicit offset
	// keeps the assistant turn ordered after the prompt.
	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES ($1,$2,$3,$4,NOW())
	`, rec.UserMessageID, o.ChatID, string(codegen.RoleUser), o.Prompt); err != nil {
		return pipeline.Record{}, fmt.Errorf("insert user message: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, role, content, video_url, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW() + interval '1 microsecond')
	`, rec.AssistantMessageID, o.ChatID, string(codegen.RoleAssistant), o.Reply, o.VideoURL); err != nil {
		return pipeline.Record{}, fmt.Errorf("insert assistant message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO videos (id, chat_id, message_id, video_url, code, summary, duration_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.VideoID, o.ChatID, rec.AssistantMessageID, o.VideoURL, o.Code, o.Summary, CeilSeconds(o.DurationSeconds)); err != nil {
		return pipeline.Record{}, fmt.Errorf("insert video: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return pipeline.Record{}, fmt.Errorf("commit record: %w", err)
	}
	return rec, nil
}

// CeilSeconds rounds a measured duration up to whole seconds.
func CeilSeconds(d float64) int {
	if d <= 0 || math.IsNaN(d) {
		return 0
	}
	return int(math.Ceil(d))
}

const maxTitleRunes = 80

func chatTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) > maxTitleRunes {
		r = r[:maxTitleRunes]
	}
	return string(r)
}
