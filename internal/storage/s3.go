package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
)

const MaxUploadSize = 10 << 20

var ErrNotConfigured = errors.New("image storage is not configured")

var validExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".webp": true, ".heic": true,
	".mp4": true, ".mov": true,
}

var videoExtensions = map[string]bool{".mp4": true, ".mov": true}

// ValidateUpload checks the file name and size accepted by the create-post form
// and returns the lower-cased extension.
func ValidateUpload(filename string, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !validExtensions[ext] {
		return "", apperr.Validation("invalid file extension %q", ext)
	}
	if size <= 0 {
		return "", apperr.Validation("empty upload")
	}
	if size > MaxUploadSize {
		return "", apperr.Validation("file exceeds %d MiB", MaxUploadSize>>20)
	}
	return ext, nil
}

func IsVideo(ext string) bool {
	return videoExtensions[strings.ToLower(ext)]
}

type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint points at an S3 compatible server; path-style addressing is
	// used when set.
	Endpoint string
}

type S3 struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, region: cfg.Region, endpoint: endpoint}, nil
}

// Store uploads body under folder/name and returns its public URL.
func (s *S3) Store(ctx context.Context, folder, name, contentType string, body io.Reader) (string, error) {
	key := path.Join(folder, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	metrics.GatewayCalls.WithLabelValues("storage", metrics.Outcome(err)).Inc()
	if err != nil {
		return "", apperr.Storage(fmt.Errorf("put %s: %w", key, err))
	}
	return s.publicURL(key), nil
}

// Delete removes the object behind a URL returned by Store.
func (s *S3) Delete(ctx context.Context, url string) error {
	key, ok := s.keyOf(url)
	if !ok {
		return apperr.Storage(fmt.Errorf("url %q is not in bucket %s", url, s.bucket))
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperr.Storage(fmt.Errorf("delete %s: %w", key, err))
	}
	return nil
}

func (s *S3) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3) keyOf(url string) (string, bool) {
	prefix := s.publicURL("")
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
