// Package storage uploads user media to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"zephyr/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config configures an S3Store.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
	MaxBytes int64
}

type putter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Object is a stored upload.
type Object struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Kind Kind   `json:"kind"`
	MIME string `json:"mime"`
}

// S3Store writes objects to one bucket and returns public URLs.
type S3Store struct {
	uploader putter
	cfg      Config
}

// NewS3Store loads AWS credentials from the default chain. A non-empty Endpoint
// selects path-style addressing for MinIO and other S3-compatible stores.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{uploader: manager.NewUploader(client), cfg: cfg}, nil
}

// Upload stores data under key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	start := time.Now()
	ctx, finish := observability.StartClientSpan(ctx, "s3", "put_object")
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	finish(err)
	observability.ObserveOutbound("s3", start, err)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

// UploadMedia sniffs data, rejects anything but images and videos, and stores it
// under prefix with a random name.
func (s *S3Store) UploadMedia(ctx context.Context, prefix string, data []byte) (*Object, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	d, err := Detect(data)
	if err != nil {
		return nil, err
	}
	key := objectKey(prefix, d.Extension)
	u, err := s.Upload(ctx, key, d.MIME, data)
	if err != nil {
		return nil, err
	}
	return &Object{URL: u, Key: key, Kind: d.Kind, MIME: d.MIME}, nil
}

// UploadPicture normalizes an image to a square JPEG before storing it.
func (s *S3Store) UploadPicture(ctx context.Context, prefix string, data []byte) (string, error) {
	if err := s.checkSize(data); err != nil {
		return "", err
	}
	jpeg, err := NormalizePicture(data)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, objectKey(prefix, "jpg"), "image/jpeg", jpeg)
}

func (s *S3Store) checkSize(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if s.cfg.MaxBytes > 0 && int64(len(data)) > s.cfg.MaxBytes {
		return ErrTooLarge
	}
	return nil
}

func (s *S3Store) publicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

func objectKey(prefix, ext string) string {
	prefix = strings.Trim(prefix, "/")
	return fmt.Sprintf("%s/%s.%s", prefix, uuid.NewString(), ext)
}
