package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Store stores media objects in AWS S3 (or any S3-compatible service).
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := media.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "media/")
type S3Store struct {
	client    *s3.Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithURLExpiry sets how long presigned URLs are valid. Default 24h.
func WithURLExpiry(d time.Duration) S3Option {
	return func(s *S3Store) {
		s.urlExpiry = d
	}
}

// NewS3Store creates an S3-backed media store. All keys are stored under
// prefix in bucket.
func NewS3Store(client *s3.Client, bucket, prefix string, opts ...S3Option) *S3Store {
	s := &S3Store{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		urlExpiry: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save uploads the object to S3 under prefix+key.
func (s *S3Store) Save(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	fullKey := s.prefix + key
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("media: s3 put %s: %w", fullKey, err)
	}

	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		ModTime:     time.Now(),
		URL:         s.presign(ctx, fullKey),
	}, nil
}

// Open returns a reader over the object's bytes.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

// Stat describes the object without reading it.
func (s *S3Store) Stat(ctx context.Context, key string) (*Object, error) {
	fullKey := s.prefix + key
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	obj := &Object{Key: key, URL: s.presign(ctx, fullKey)}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		obj.ModTime = *out.LastModified
	}
	return obj, nil
}

// Delete removes the object.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	return err
}

// List returns keys under prefix (relative to the store's own prefix).
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			keys = append(keys, (*obj.Key)[len(s.prefix):])
		}
	}
	return keys, nil
}

// presign returns a presigned GET URL, or "" if presigning fails.
func (s *S3Store) presign(ctx context.Context, fullKey string) string {
	presigner := s3.NewPresignClient(s.client)
	out, err := presigner.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
		},
		s3.WithPresignExpires(s.urlExpiry),
	)
	if err != nil {
		return ""
	}
	return out.URL
}

// isS3NotFound reports whether err is an S3 missing-key error.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
