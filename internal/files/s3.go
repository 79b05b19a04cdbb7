// Package files stores asset attachments in S3 or an S3-compatible object
// store and records them against the asset.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrStorageDisabled is returned when no bucket is configured.
var ErrStorageDisabled = errors.New("attachment storage is not configured")

// Options configure an S3Storage.
type Options struct {
	Bucket string
	Region string

	// Endpoint overrides the S3 endpoint, e.g. http://localhost:9000 for MinIO.
	Endpoint     string
	UsePathStyle bool
	PresignTTL   time.Duration
}

// ObjectStore is the object storage used for attachments.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type putAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage writes objects to one bucket.
type S3Storage struct {
	bucket  string
	baseURL string
	client  putAPI
	presign func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error)
}

// NewS3Storage loads the default AWS credential chain and builds a client
// for opts.Bucket. It returns ErrStorageDisabled when the bucket is empty.
func NewS3Storage(ctx context.Context, opts Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, ErrStorageDisabled
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	if opts.Endpoint != "" {
		slog.Info("s3 custom endpoint configured", "endpoint", opts.Endpoint, "path_style", opts.UsePathStyle)
	}

	presigner := s3.NewPresignClient(client)
	return &S3Storage{
		bucket:  opts.Bucket,
		baseURL: objectBaseURL(opts),
		client:  client,
		presign: func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
	}, nil
}

// objectBaseURL is the URL prefix objects are addressable under.
func objectBaseURL(opts Options) string {
	switch {
	case opts.Endpoint != "" && opts.UsePathStyle:
		return fmt.Sprintf("%s/%s/", opts.Endpoint, opts.Bucket)
	case opts.Endpoint != "":
		return opts.Endpoint + "/"
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", opts.Bucket, opts.Region)
	}
}

// Upload stores body under key and returns the object URL.
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.baseURL + key, nil
}

// PresignGet returns a time-limited download URL for key.
func (s *S3Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.presign(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return url, nil
}
