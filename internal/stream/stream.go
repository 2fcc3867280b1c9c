// Package stream serves stored videos over HTTP with byte-range support.
package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"sync/atomic"

	"scenecast/internal/artifact"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/ports"
)

// ChunkSize is the read size used when relaying an object body.
const ChunkSize = 8192

// ErrConsumed is yielded when Chunks is iterated a second time.
var ErrConsumed = stderrors.New("stream already consumed")

// Source is the part of the artifact gateway the streamer reads from.
type Source interface {
	HeadSize(ctx context.Context, loc artifact.Location) (int64, error)
	Open(ctx context.Context, loc artifact.Location, rng *ports.ByteRange) (io.ReadCloser, error)
}

type Streamer struct {
	src Source
	log *logger.Logger
}

func NewStreamer(src Source, log *logger.Logger) *Streamer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Streamer{src: src, log: log.WithComponent("stream")}
}

// Stream is a prepared response. The body is opened by Prepare and released
// when Chunks finishes or Close is called.
type Stream struct {
	Status int
	Header http.Header
	Size   int64
	// Range is nil for a full-object response.
	Range *ports.ByteRange

	body     io.ReadCloser
	consumed atomic.Bool
}

// Prepare sizes the object at loc, resolves rangeHeader against it and opens
// the body. Unsatisfiable ranges fail with RANGE_NOT_SATISFIABLE; use
// UnsatisfiedSize to build the Content-Range reply.
func (s *Streamer) Prepare(ctx context.Context, loc artifact.Location, rangeHeader string) (*Stream, error) {
	const op = "stream.prepare"

	size, err := s.src.HeadSize(ctx, loc)
	if err != nil {
		return nil, errors.Wrap(err, op, "resolve object size")
	}
	rng, err := ParseRange(rangeHeader, size)
	if err != nil {
		s.log.FromContext(ctx).Debug("unsatisfiable range", "range", rangeHeader, "size", size)
		return nil, err
	}

	body, err := s.src.Open(ctx, loc, rng)
	if err != nil {
		return nil, errors.Wrap(err, op, "open object")
	}

	h := make(http.Header)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", artifact.ContentTypeMP4)
	st := &Stream{Status: http.StatusOK, Header: h, Size: size, Range: rng, body: body}
	if rng == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		return st, nil
	}
	st.Status = http.StatusPartialContent
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size))
	h.Set("Content-Length", strconv.FormatInt(rng.Len(), 10))
	return st, nil
}

// Chunks yields the body in reads of at most ChunkSize bytes. A yielded slice
// is only valid until the next iteration. The body is closed when iteration
// ends, early stop included. A second iteration yields ErrConsumed.
func (st *Stream) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if !st.consumed.CompareAndSwap(false, true) {
			yield(nil, ErrConsumed)
			return
		}
		defer st.body.Close()

		buf := make([]byte, ChunkSize)
		for {
			n, err := st.body.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Close releases the body if Chunks was never iterated.
func (st *Stream) Close() error {
	if st.consumed.CompareAndSwap(false, true) {
		return st.body.Close()
	}
	return nil
}

// Serve sends the status line, headers and body to w, flushing after every
// chunk. It returns the number of body bytes written.
func (st *Stream) Serve(w http.ResponseWriter) (int64, error) {
	for k, v := range st.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(st.Status)

	rc := http.NewResponseController(w)
	var written int64
	for chunk, err := range st.Chunks() {
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
		_ = rc.Flush()
	}
	return written, nil
}
