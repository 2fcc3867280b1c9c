package artifact

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/adapters/storage/localfs"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/ports"
)

func newTestGateway(t *testing.T) (*Gateway, *localfs.LocalFS) {
	t.Helper()
	store := localfs.New(t.TempDir())
	frozen := time.UnixMilli(1_700_000_000_000)
	return NewGateway(Options{
		Store:  store,
		Bucket: "videos",
		Log:    logger.NewNop(),
		Now:    func() time.Time { return frozen },
	}), store
}

func TestUploadThenOpen(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	loc, err := g.Upload(ctx, []byte("mp4-bytes"), "ada", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "videos", loc.Bucket)
	assert.True(t, strings.HasPrefix(loc.Key, "ada/chat-1/video_"), loc.Key)
	assert.True(t, strings.HasSuffix(loc.Key, ".mp4"))
	assert.Positive(t, loc.Version)

	size, err := g.HeadSize(ctx, loc)
	require.NoError(t, err)
	assert.EqualValues(t, 9, size)

	rc, err := g.Open(ctx, loc, &ports.ByteRange{Start: 4, End: 8})
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(body))
}

func TestVersionsStrictlyIncrease(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[int64]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := g.Upload(ctx, []byte("x"))
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[loc.Version], "duplicate version %d", loc.Version)
			seen[loc.Version] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 16)
}

func TestReplaceKeepsKeyAndBumpsVersion(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	orig, err := g.Upload(ctx, []byte("silent"), "ada")
	require.NoError(t, err)

	merged := filepath.Join(t.TempDir(), "merged.mp4")
	require.NoError(t, os.WriteFile(merged, []byte("with narration"), 0o644))

	next, err := g.Replace(ctx, g.URL(orig), merged)
	require.NoError(t, err)
	assert.Equal(t, orig.Bucket, next.Bucket)
	assert.Equal(t, orig.Key, next.Key)
	assert.Greater(t, next.Version, orig.Version)

	var buf bytes.Buffer
	require.NoError(t, g.Download(ctx, g.URL(next), &buf))
	assert.Equal(t, "with narration", buf.String())
}

func TestReplaceErrors(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	_, err := g.Replace(ctx, "not a url", "/nope")
	assert.True(t, errors.IsValidation(err))

	_, err = g.Replace(ctx, "s3://videos/k.mp4", filepath.Join(t.TempDir(), "missing.mp4"))
	assert.True(t, errors.IsCode(err, errors.CodeUploadFailed))
}

func TestMissingObject(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	loc := Location{Bucket: "videos", Key: "nobody/video_0.mp4"}

	_, err := g.HeadSize(ctx, loc)
	assert.True(t, errors.IsNotFound(err))

	err = g.Download(ctx, loc.URI(), io.Discard)
	assert.True(t, errors.IsNotFound(err))
}

type failingStore struct{ ports.ObjectStore }

func (failingStore) PutObject(context.Context, ports.PutObjectInput) (ports.PutObjectOutput, error) {
	return ports.PutObjectOutput{}, ports.ErrCredentialsMissing
}

func TestUploadCredentialsMissing(t *testing.T) {
	g := NewGateway(Options{Store: failingStore{}, Bucket: "videos", Log: logger.NewNop()})
	_, err := g.Upload(context.Background(), []byte("x"))
	assert.True(t, errors.IsCode(err, errors.CodeCredentialsMissing))
}

func TestNewKey(t *testing.T) {
	assert.Regexp(t, `^video_[0-9a-f]{8}\.mp4$`, NewKey())
	assert.Regexp(t, `^ada/c1/video_[0-9a-f]{8}\.mp4$`, NewKey(" ada ", "", "/c1/"))
}
