package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrObjectNotFound is returned when bucket/key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrCredentialsMissing is returned when the store cannot authenticate.
	ErrCredentialsMissing = errors.New("object store credentials missing")
)

// ByteRange is an inclusive byte range.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered.
func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

// Header formats r as an HTTP Range header value.
func (r ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

type PutObjectInput struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	Reader       io.Reader
	Size         int64
}

type PutObjectOutput struct {
	Bucket string
	Key    string
	Size   int64
}

type ObjectInfo struct {
	Size        int64
	ContentType string
}

type GetObjectInput struct {
	Bucket string
	Key    string
	// Range is optional; nil reads the whole object.
	Range *ByteRange
}

// ObjectStore is the storage contract shared by the API, the worker and the CLI.
// Objects are never deleted: rewrites replace content under the same key.
type ObjectStore interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	GetObject(ctx context.Context, in GetObjectInput) (io.ReadCloser, ObjectInfo, error)
}
