package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/config"
	"scenecast/internal/media/merge"
	"scenecast/internal/pkg/command"
	apperrors "scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
)

func TestMergerWithoutStorageFailsCleanly(t *testing.T) {
	cfg := config.Default()
	cfg.Media.TempDir = t.TempDir()

	var calls int
	svc := &Services{
		Config: &cfg,
		Log:    logger.NewNop(),
		Runner: command.RunnerFunc(func(context.Context, string, string, ...string) (command.Result, error) {
			calls++
			return command.Result{}, nil
		}),
	}

	audio := filepath.Join(t.TempDir(), "narration.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0o644))

	_, err := svc.Merger().Merge(context.Background(), merge.Job{
		VideoLocation: "s3://videos/chat/video_1.mp4",
		AudioPath:     audio,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMergeDownload, apperrors.GetCode(err))
	assert.Zero(t, calls)

	entries, err := os.ReadDir(cfg.Media.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Sandbox.WorkRoot = filepath.Join(root, "work")
	cfg.Media.TempDir = filepath.Join(root, "media")
	cfg.Narration.AudioDir = ""

	require.NoError(t, EnsureDirs(&cfg))
	assert.DirExists(t, cfg.Sandbox.WorkRoot)
	assert.DirExists(t, cfg.Media.TempDir)
}
