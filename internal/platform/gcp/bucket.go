package gcp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

// PhotoBucket stores meter photos and hands back a stable public URL.
type PhotoBucket interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) (publicURL string, err error)
	Close() error
}

type photoBucket struct {
	log     *logger.Logger
	client  *storage.Client
	bucket  string
	timeout time.Duration
}

func NewPhotoBucket(baseLog *logger.Logger) (PhotoBucket, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	bucket := strings.TrimSpace(os.Getenv("METER_PHOTO_BUCKET"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var METER_PHOTO_BUCKET")
	}
	client, err := storage.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &photoBucket{
		log:     baseLog.With("service", "gcp.PhotoBucket"),
		client:  client,
		bucket:  bucket,
		timeout: 60 * time.Second,
	}, nil
}

func (s *photoBucket) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *photoBucket) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty object key", pkgerr.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%w: upload %s: %v", pkgerr.ErrExternalService, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: finalize %s: %v", pkgerr.ErrExternalService, key, err)
	}

	s.log.Debug("Uploaded meter photo", "bucket", s.bucket, "key", key)
	return s.publicURL(key), nil
}

func (s *photoBucket) publicURL(key string) string {
	escaped := url.PathEscape(key)
	// PathEscape keeps "/" meaningful in object keys.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, escaped)
}
