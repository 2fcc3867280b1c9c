package repositories

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/artifact"
	"scenecast/internal/models"
	"scenecast/internal/pipeline"
)

func TestLoadMigrationsOrdered(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "001_init", migrations[0].version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].version, migrations[i].version)
	}
	for _, table := range []string{"chats", "messages", "videos", "narration_jobs"} {
		assert.Contains(t, migrations[0].sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestTruncateErrorText(t *testing.T) {
	assert.Equal(t, "short", TruncateErrorText("short"))

	long := strings.Repeat("x", MaxErrorText+10)
	assert.Len(t, TruncateErrorText(long), MaxErrorText)

	// A multi-byte rune straddling the limit is dropped whole.
	multi := strings.Repeat("a", MaxErrorText-1) + "é" + "tail"
	got := TruncateErrorText(multi)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, MaxErrorText-1)
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{-3, 0},
		{10, 10},
		{10.001, 11},
		{12.4, 13},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CeilSeconds(tt.in), "in=%v", tt.in)
	}
}

func TestChatTitle(t *testing.T) {
	assert.Equal(t, "draw a triangle", chatTitle("draw a triangle"))
	assert.Equal(t, maxTitleRunes, utf8.RuneCountInString(chatTitle(strings.Repeat("ü", 200))))
}

// testPool connects to SCENECAST_TEST_DATABASE_URL and applies migrations.
// Tests that need it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("SCENECAST_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SCENECAST_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "migrations are idempotent")
	return pool
}

func TestGenerationLifecycle(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	chatID := "chat-" + uuid.NewString()
	outcome := pipeline.Outcome{
		Owner:           "ada",
		ChatID:          chatID,
		Prompt:          "draw a triangle",
		Reply:           "```python\nclass Main(Scene): pass\n```",
		Code:            "class Main(Scene): pass",
		Summary:         "A triangle.",
		Location:        artifact.Location{Bucket: "b", Key: "ada/" + chatID + "/video_1.mp4"},
		VideoURL:        "https://b.s3.amazonaws.com/ada/video_1.mp4?v=1",
		DurationSeconds: 4.2,
		Attempts:        1,
	}

	rec, err := NewGenerationRecorder(pool).Record(ctx, outcome)
	require.NoError(t, err)

	chats := NewChatRepository(pool)
	_, err = chats.GetOwned(ctx, chatID, "mallory")
	assert.ErrorIs(t, err, ErrChatNotFound)

	msgs, err := chats.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, outcome.VideoURL, msgs[1].VideoURL)

	_, err = NewGenerationRecorder(pool).Record(ctx, pipeline.Outcome{Owner: "mallory", ChatID: chatID, Prompt: "x"})
	assert.ErrorIs(t, err, ErrChatOwnerMismatch)

	videos := NewVideoRepository(pool)
	v, err := videos.GetOwned(ctx, rec.VideoID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 5, v.DurationSeconds)
	assert.Equal(t, outcome.Code, v.Code)

	jobs := NewNarrationJobRepository(pool)
	job, err := jobs.Create(ctx, v.ID, "A triangle appears.")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)

	require.NoError(t, jobs.MarkRunning(ctx, job.ID))
	require.NoError(t, videos.UpdateMedia(ctx, v.ID, outcome.VideoURL+"2", 11))
	require.NoError(t, jobs.MarkDone(ctx, job.ID))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)

	v, err = videos.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, v.DurationSeconds)

	_, err = jobs.Create(ctx, "missing-video", "script")
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.ErrorIs(t, jobs.MarkFailed(ctx, "missing-job", "boom"), ErrJobNotFound)
}
