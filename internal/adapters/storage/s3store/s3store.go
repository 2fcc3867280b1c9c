// Package s3store implements ports.ObjectStore on Amazon S3 (or any
// S3-compatible endpoint) using aws-sdk-go-v2.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"scenecast/internal/ports"
)

// API is the subset of *s3.Client the store needs.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config selects region, credentials and an optional endpoint override.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint switches to path-style addressing against a custom host.
	Endpoint string
}

type Store struct {
	api API
}

// New wraps an existing client.
func New(api API) *Store {
	return &Store{api: api}
}

// Open builds a client from cfg. Static keys take precedence over the default
// credential chain; a chain that yields nothing is reported as
// ports.ErrCredentialsMissing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrCredentialsMissing, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client), nil
}

func (s *Store) Provider() string { return "s3" }

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	params := &s3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		params.ContentType = aws.String(in.ContentType)
	}
	if in.CacheControl != "" {
		params.CacheControl = aws.String(in.CacheControl)
	}
	if in.Size > 0 {
		params.ContentLength = aws.Int64(in.Size)
	}
	if _, err := s.api.PutObject(ctx, params); err != nil {
		return ports.PutObjectOutput{}, mapErr("put", in.Bucket, in.Key, err)
	}
	return ports.PutObjectOutput{Bucket: in.Bucket, Key: in.Key, Size: in.Size}, nil
}

func (s *Store) HeadObject(ctx context.Context, bucket, key string) (ports.ObjectInfo, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return ports.ObjectInfo{}, mapErr("head", bucket, key, err)
	}
	return ports.ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func (s *Store) GetObject(ctx context.Context, in ports.GetObjectInput) (io.ReadCloser, ports.ObjectInfo, error) {
	params := &s3.GetObjectInput{Bucket: aws.String(in.Bucket), Key: aws.String(in.Key)}
	if in.Range != nil {
		params.Range = aws.String(in.Range.Header())
	}
	out, err := s.api.GetObject(ctx, params)
	if err != nil {
		return nil, ports.ObjectInfo{}, mapErr("get", in.Bucket, in.Key, err)
	}
	return out.Body, ports.ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func mapErr(op, bucket, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("s3 %s s3://%s/%s: %w", op, bucket, key, ports.ErrObjectNotFound)
	}
	if isCredentialError(err) {
		return fmt.Errorf("s3 %s s3://%s/%s: %w: %v", op, bucket, key, ports.ErrCredentialsMissing, err)
	}
	return fmt.Errorf("s3 %s s3://%s/%s: %w", op, bucket, key, err)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func isCredentialError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return true
		}
	}
	return false
}
