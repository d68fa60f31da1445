// Package blob issues presigned URLs for attachment objects. File bytes never
// pass through the API.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"brokerdesk/internal/config"
)

const (
	DriverMemory = "memory"
	DriverS3     = "s3"
)

var ErrInvalidKey = errors.New("invalid object key")

// Store signs upload and download URLs for object keys.
type Store interface {
	Driver() string
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Open builds the store selected by configuration.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(cfg.Bucket), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Memory signs nothing; it returns stable pseudo URLs for tests and local
// development.
type Memory struct {
	bucket string
	now    func() time.Time
}

func NewMemory(bucket string) *Memory {
	if bucket == "" {
		bucket = "local"
	}
	return &Memory{bucket: bucket, now: time.Now}
}

func (m *Memory) Driver() string { return DriverMemory }

func (m *Memory) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return m.sign("PUT", key, contentType, ttl)
}

func (m *Memory) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return m.sign("GET", key, "", ttl)
}

func (m *Memory) sign(method, key, contentType string, ttl time.Duration) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", strconv.FormatInt(m.now().Add(ttl).Unix(), 10))
	if contentType != "" {
		q.Set("content-type", contentType)
	}
	u := url.URL{Scheme: "memory", Host: m.bucket, Path: "/" + key, RawQuery: q.Encode()}
	return u.String(), nil
}
