package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/ports"
)

type fakeAPI struct {
	put     *s3.PutObjectInput
	get     *s3.GetObjectInput
	headErr error
	getErr  error
	body    string
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.body))), ContentType: aws.String("video/mp4")}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.get = in
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestPutObjectSetsHeaders(t *testing.T) {
	api := &fakeAPI{}
	s := New(api)

	out, err := s.PutObject(context.Background(), ports.PutObjectInput{
		Bucket:       "videos",
		Key:          "ada/c1/video_1.mp4",
		ContentType:  "video/mp4",
		CacheControl: "no-cache, no-store, must-revalidate",
		Reader:       strings.NewReader("abc"),
		Size:         3,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada/c1/video_1.mp4", out.Key)
	assert.Equal(t, "videos", aws.ToString(api.put.Bucket))
	assert.Equal(t, "video/mp4", aws.ToString(api.put.ContentType))
	assert.Equal(t, "no-cache, no-store, must-revalidate", aws.ToString(api.put.CacheControl))
	assert.EqualValues(t, 3, aws.ToInt64(api.put.ContentLength))
}

func TestHeadObject(t *testing.T) {
	s := New(&fakeAPI{body: "12345"})
	info, err := s.HeadObject(context.Background(), "videos", "k")
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size)
	assert.Equal(t, "video/mp4", info.ContentType)
}

func TestNotFoundMapping(t *testing.T) {
	cases := []error{
		&s3types.NotFound{},
		&s3types.NoSuchKey{},
		&smithy.GenericAPIError{Code: "NoSuchBucket"},
	}
	for _, c := range cases {
		s := New(&fakeAPI{headErr: c, getErr: c})
		_, err := s.HeadObject(context.Background(), "videos", "k")
		assert.ErrorIs(t, err, ports.ErrObjectNotFound)

		_, _, err = s.GetObject(context.Background(), ports.GetObjectInput{Bucket: "videos", Key: "k"})
		assert.ErrorIs(t, err, ports.ErrObjectNotFound)
	}
}

func TestCredentialMapping(t *testing.T) {
	s := New(&fakeAPI{headErr: &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}})
	_, err := s.HeadObject(context.Background(), "videos", "k")
	assert.ErrorIs(t, err, ports.ErrCredentialsMissing)

	s = New(&fakeAPI{headErr: errors.New("connection reset")})
	_, err = s.HeadObject(context.Background(), "videos", "k")
	assert.False(t, errors.Is(err, ports.ErrObjectNotFound))
	assert.False(t, errors.Is(err, ports.ErrCredentialsMissing))
}

func TestGetObjectRange(t *testing.T) {
	api := &fakeAPI{body: "2345"}
	s := New(api)

	rc, _, err := s.GetObject(context.Background(), ports.GetObjectInput{
		Bucket: "videos", Key: "k", Range: &ports.ByteRange{Start: 2, End: 5},
	})
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "bytes=2-5", aws.ToString(api.get.Range))
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "2345", string(b))
}
