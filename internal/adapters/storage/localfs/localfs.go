package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"scenecast/internal/ports"
)

// LocalFS stores objects as files under root/<bucket>/<key>.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", errors.New("localfs: bucket and key are required")
	}
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if strings.Contains(bucket, "/") || strings.Contains(bucket, "..") {
		return "", fmt.Errorf("localfs: invalid bucket %q", bucket)
	}
	return filepath.Join(l.root, bucket, clean), nil
}

// PutObject writes to a temporary sibling and renames it into place, so
// readers never observe a partially written object.
func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	dst, err := l.path(in.Bucket, in.Key)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, in.Reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return ports.PutObjectOutput{}, err
	}
	return ports.PutObjectOutput{Bucket: in.Bucket, Key: in.Key, Size: n}, nil
}

func (l *LocalFS) HeadObject(_ context.Context, bucket, key string) (ports.ObjectInfo, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return ports.ObjectInfo{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return ports.ObjectInfo{}, mapErr(err)
	}
	if st.IsDir() {
		return ports.ObjectInfo{}, ports.ErrObjectNotFound
	}
	return ports.ObjectInfo{Size: st.Size(), ContentType: contentType(p)}, nil
}

func (l *LocalFS) GetObject(_ context.Context, in ports.GetObjectInput) (io.ReadCloser, ports.ObjectInfo, error) {
	p, err := l.path(in.Bucket, in.Key)
	if err != nil {
		return nil, ports.ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, ports.ObjectInfo{}, mapErr(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ports.ObjectInfo{}, err
	}
	info := ports.ObjectInfo{Size: st.Size(), ContentType: contentType(p)}
	if in.Range == nil {
		return f, info, nil
	}

	if _, err := f.Seek(in.Range.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, ports.ObjectInfo{}, err
	}
	return readCloser{Reader: io.LimitReader(f, in.Range.Len()), Closer: f}, info, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mapErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ports.ErrObjectNotFound, err)
	}
	return err
}
