package blob

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/config"
)

func TestMemoryPresign(t *testing.T) {
	m := NewMemory("docs")
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	put, err := m.PresignPut(ctx, "claim/c1/abc/scan.pdf", "application/pdf", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(put)
	require.NoError(t, err)
	assert.Equal(t, "memory", u.Scheme)
	assert.Equal(t, "docs", u.Host)
	assert.Equal(t, "/claim/c1/abc/scan.pdf", u.Path)
	assert.Equal(t, "PUT", u.Query().Get("method"))
	assert.Equal(t, "1700000060", u.Query().Get("expires"))
	assert.Equal(t, "application/pdf", u.Query().Get("content-type"))

	get, err := m.PresignGet(ctx, "claim/c1/abc/scan.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.Contains(get, "method=GET"))

	_, err = m.PresignGet(ctx, "../etc/passwd", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestS3PresignWithStaticCredentials(t *testing.T) {
	store, err := NewS3(context.Background(), S3Config{
		Bucket:          "attachments",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		PathStyle:       true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	require.NoError(t, err)
	put, err := store.PresignPut(context.Background(), "policy/p1/x/terms.pdf", "application/pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(put, "http://localhost:9000/attachments/policy/p1/x/terms.pdf?"), put)
	assert.Contains(t, put, "X-Amz-Signature=")

	get, err := store.PresignGet(context.Background(), "policy/p1/x/terms.pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, get, "X-Amz-Expires=300")
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	_, err = Open(context.Background(), config.StorageConfig{Driver: "s3"})
	require.Error(t, err)

	_, err = Open(context.Background(), config.StorageConfig{Driver: "ftp"})
	require.Error(t, err)
}
