package repositories

import (
	"context"
	"database/sql"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenecast/internal/httpkit"
	"scenecast/internal/models"
)

var ErrJobNotFound = errors.New("narration job not found")

// MaxErrorText bounds the error text stored on a failed job.
const MaxErrorText = 2000

type NarrationJobRepository struct {
	db *pgxpool.Pool
}

func NewNarrationJobRepository(db *pgxpool.Pool) *NarrationJobRepository {
	return &NarrationJobRepository{db: db}
}

// Create inserts a QUEUED job for videoID and returns it.
func (r *NarrationJobRepository) Create(ctx context.Context, videoID, script string) (*models.NarrationJob, error) {
	j := models.NarrationJob{
		ID:      uuid.NewString(),
		VideoID: videoID,
		Status:  models.JobQueued,
		Script:  script,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO narration_jobs (id, video_id, status, script)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, j.ID, j.VideoID, string(j.Status), j.Script).Scan(&j.CreatedAt)
	if err != nil {
		if httpkit.IsForeignKeyViolation(err) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *NarrationJobRepository) Get(ctx context.Context, id string) (*models.NarrationJob, error) {
	var (
		j         models.NarrationJob
		status    string
		errorText sql.NullString
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, video_id, status, script, error_text, created_at, started_at, finished_at
		FROM narration_jobs
		WHERE id=$1
	`, id).Scan(
		&j.ID,
		&j.VideoID,
		&status,
		&j.Script,
		&errorText,
		&j.CreatedAt,
		&j.StartedAt,
		&j.FinishedAt,
	)
	if err != nil {
		if httpkit.IsNoRows(err) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.ErrorText = errorText.String
	return &j, nil
}

func (r *NarrationJobRepository) MarkRunning(ctx context.Context, id string) error {
	return r.exec(ctx,
		`UPDATE narration_jobs SET status='RUNNING', started_at=NOW(), finished_at=NULL, error_text=NULL WHERE id=$1`,
		id,
	)
}

func (r *NarrationJobRepository) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx,
		`UPDATE narration_jobs SET status='DONE', finished_at=NOW() WHERE id=$1`,
		id,
	)
}

// MarkFailed records msg, truncated to MaxErrorText bytes.
func (r *NarrationJobRepository) MarkFailed(ctx context.Context, id, msg string) error {
	return r.exec(ctx,
		`UPDATE narration_jobs SET status='FAILED', finished_at=NOW(), error_text=$2 WHERE id=$1`,
		id, TruncateErrorText(msg),
	)
}

func (r *NarrationJobRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// TruncateErrorText cuts msg to MaxErrorText bytes without splitting a rune.
func TruncateErrorText(msg string) string {
	if len(msg) <= MaxErrorText {
		return msg
	}
	cut := MaxErrorText
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
