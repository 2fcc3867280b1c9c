// Package artifact stores rendered videos and hands out versioned locations
// for them.
package artifact

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/ports"
)

const (
	ContentTypeMP4 = "video/mp4"
	// NoCacheControl forces clients and CDNs to revalidate rewritten videos.
	NoCacheControl = "no-cache, no-store, must-revalidate"
)

// Options configures a Gateway.
type Options struct {
	Store  ports.ObjectStore
	Bucket string
	// Host is the public host suffix used in returned URLs.
	Host string
	Log  *logger.Logger
	// Now is the clock used for version markers; defaults to time.Now.
	Now func() time.Time
}

// Gateway uploads, replaces and reads artifacts.
type Gateway struct {
	store  ports.ObjectStore
	bucket string
	host   string
	log    *logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastVer int64
}

func NewGateway(opts Options) *Gateway {
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Host == "" {
		opts.Host = "s3.amazonaws.com"
	}
	return &Gateway{
		store:  opts.Store,
		bucket: opts.Bucket,
		host:   opts.Host,
		log:    opts.Log.WithComponent("artifact"),
		now:    opts.Now,
	}
}

// URL formats loc for clients.
func (g *Gateway) URL(loc Location) string {
	return loc.URL(g.host)
}

// nextVersion returns a millisecond timestamp strictly greater than any
// previously issued by g.
func (g *Gateway) nextVersion() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.now().UnixMilli()
	if v <= g.lastVer {
		v = g.lastVer + 1
	}
	g.lastVer = v
	return v
}

// NewKey builds <owner...>/video_<id>.mp4. Empty owner segments are skipped.
func NewKey(owner ...string) string {
	parts := make([]string, 0, len(owner)+1)
	for _, o := range owner {
		if o = strings.Trim(strings.TrimSpace(o), "/"); o != "" {
			parts = append(parts, o)
		}
	}
	parts = append(parts, "video_"+uuid.NewString()[:8]+".mp4")
	return path.Join(parts...)
}

// Upload stores video bytes under a fresh key scoped by owner.
func (g *Gateway) Upload(ctx context.Context, data []byte, owner ...string) (Location, error) {
	loc := Location{Bucket: g.bucket, Key: NewKey(owner...)}
	return g.put(ctx, "artifact.upload", loc, bytes.NewReader(data), int64(len(data)))
}

// Replace rewrites the object behind rawLocation with the file at localPath.
// Bucket and key are kept; only the version marker changes.
func (g *Gateway) Replace(ctx context.Context, rawLocation, localPath string) (Location, error) {
	const op = "artifact.replace"
	loc, err := ParseLocation(rawLocation)
	if err != nil {
		return Location{}, errors.Wrap(err, op, "invalid location")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return Location{}, errors.E(op, errors.CodeUploadFailed, "open replacement file", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Location{}, errors.E(op, errors.CodeUploadFailed, "stat replacement file", err)
	}
	return g.put(ctx, op, loc, f, st.Size())
}

func (g *Gateway) put(ctx context.Context, op string, loc Location, r io.Reader, size int64) (Location, error) {
	_, err := g.store.PutObject(ctx, ports.PutObjectInput{
		Bucket:       loc.Bucket,
		Key:          loc.Key,
		ContentType:  ContentTypeMP4,
		CacheControl: NoCacheControl,
		Reader:       r,
		Size:         size,
	})
	if err != nil {
		return Location{}, storeErr(op, loc, err, errors.CodeUploadFailed)
	}
	loc.Version = g.nextVersion()
	g.log.FromContext(ctx).Info("artifact stored", "op", op, "bucket", loc.Bucket, "key", loc.Key, "size", size)
	return loc, nil
}

// HeadSize returns the stored object's size in bytes.
func (g *Gateway) HeadSize(ctx context.Context, loc Location) (int64, error) {
	info, err := g.store.HeadObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return 0, storeErr("artifact.head", loc, err, errors.CodeInternal)
	}
	return info.Size, nil
}

// Open reads the object, or the inclusive range rng of it when rng is non-nil.
func (g *Gateway) Open(ctx context.Context, loc Location, rng *ports.ByteRange) (io.ReadCloser, error) {
	rc, _, err := g.store.GetObject(ctx, ports.GetObjectInput{Bucket: loc.Bucket, Key: loc.Key, Range: rng})
	if err != nil {
		return nil, storeErr("artifact.open", loc, err, errors.CodeInternal)
	}
	return rc, nil
}

// Download copies the object named by rawLocation into w.
func (g *Gateway) Download(ctx context.Context, rawLocation string, w io.Writer) error {
	loc, err := ParseLocation(rawLocation)
	if err != nil {
		return err
	}
	rc, err := g.Open(ctx, loc, nil)
	if err != nil {
		return err
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return errors.E("artifact.download", errors.CodeInternal, fmt.Sprintf("read %s", loc.URI()), err)
	}
	return nil
}

func storeErr(op string, loc Location, err error, fallback errors.Code) error {
	code := fallback
	switch {
	case stderrors.Is(err, ports.ErrObjectNotFound):
		code = errors.CodeNotFound
	case stderrors.Is(err, ports.ErrCredentialsMissing):
		code = errors.CodeCredentialsMissing
	}
	return errors.E(op, code, "object store request failed", err).
		WithField("bucket", loc.Bucket).
		WithField("key", loc.Key)
}
