package stream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/artifact"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/ports"
)

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

type memSource struct {
	data   []byte
	opened []*ports.ByteRange
	bodies []*trackingBody
}

func (m *memSource) HeadSize(context.Context, artifact.Location) (int64, error) {
	if m.data == nil {
		return 0, errors.New(errors.CodeNotFound, "object not found")
	}
	return int64(len(m.data)), nil
}

func (m *memSource) Open(_ context.Context, _ artifact.Location, rng *ports.ByteRange) (io.ReadCloser, error) {
	m.opened = append(m.opened, rng)
	data := m.data
	if rng != nil {
		data = data[rng.Start : rng.End+1]
	}
	b := &trackingBody{Reader: strings.NewReader(string(data))}
	m.bodies = append(m.bodies, b)
	return b, nil
}

var loc = artifact.Location{Bucket: "videos", Key: "ada/video_1.mp4"}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func TestPrepareFull(t *testing.T) {
	src := &memSource{data: payload(20000)}
	st, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, st.Status)
	assert.Equal(t, "20000", st.Header.Get("Content-Length"))
	assert.Equal(t, "bytes", st.Header.Get("Accept-Ranges"))
	assert.Equal(t, "video/mp4", st.Header.Get("Content-Type"))
	assert.Empty(t, st.Header.Get("Content-Range"))
	assert.Nil(t, src.opened[0])

	var sizes []int
	var total []byte
	for chunk, err := range st.Chunks() {
		require.NoError(t, err)
		sizes = append(sizes, len(chunk))
		total = append(total, chunk...)
	}
	assert.Equal(t, src.data, total)
	for _, n := range sizes {
		assert.LessOrEqual(t, n, ChunkSize)
	}
	assert.True(t, src.bodies[0].closed)
}

func TestPreparePartial(t *testing.T) {
	src := &memSource{data: payload(1000)}
	st, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "bytes=100-")
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, http.StatusPartialContent, st.Status)
	assert.Equal(t, "bytes 100-999/1000", st.Header.Get("Content-Range"))
	assert.Equal(t, "900", st.Header.Get("Content-Length"))
	assert.Equal(t, &ports.ByteRange{Start: 100, End: 999}, src.opened[0])
}

func TestPrepareUnsatisfiable(t *testing.T) {
	src := &memSource{data: payload(1000)}
	_, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "bytes=5000-")
	require.Error(t, err)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, errors.GetHTTPStatus(err))
	size, ok := UnsatisfiedSize(err)
	assert.True(t, ok)
	assert.EqualValues(t, 1000, size)
	assert.Empty(t, src.opened)
}

func TestPrepareMissingObject(t *testing.T) {
	_, err := NewStreamer(&memSource{}, logger.NewNop()).Prepare(context.Background(), loc, "")
	assert.True(t, errors.IsNotFound(err))
}

func TestChunksEarlyStopClosesBody(t *testing.T) {
	src := &memSource{data: payload(3 * ChunkSize)}
	st, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "")
	require.NoError(t, err)

	for range st.Chunks() {
		break
	}
	assert.True(t, src.bodies[0].closed)
}

func TestChunksNotRestartable(t *testing.T) {
	src := &memSource{data: payload(10)}
	st, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "")
	require.NoError(t, err)

	for range st.Chunks() {
	}
	var errs []error
	for _, err := range st.Chunks() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrConsumed)
	assert.NoError(t, st.Close())
}

func TestCloseWithoutIterating(t *testing.T) {
	src := &memSource{data: payload(10)}
	st, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.True(t, src.bodies[0].closed)
}

func TestServe(t *testing.T) {
	src := &memSource{data: payload(1000)}
	st, err := NewStreamer(src, logger.NewNop()).Prepare(context.Background(), loc, "bytes=0-9")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	n, err := st.Serve(rec)
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "abcdefghij", rec.Body.String())
	assert.Equal(t, "bytes 0-9/1000", rec.Header().Get("Content-Range"))
}
