package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithB2Config(t *testing.T) {
	cfg := WithB2Config("bucket", "us-west-004", "key", "secret")
	assert.Equal(t, "https://s3.us-west-004.backblazeb2.com", cfg.Endpoint)
	assert.Equal(t, "us-west-004", cfg.Region)
	assert.False(t, cfg.PathStyle)
}

func TestWithMinioConfig(t *testing.T) {
	cfg := WithMinioConfig("http://localhost:9000", "bucket", "key", "secret")
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.True(t, cfg.PathStyle)
}

func TestNewS3ClientWithConfig(t *testing.T) {
	client, err := NewS3ClientWithConfig(context.Background(), WithB2Config("bucket", "us-west-004", "key", "secret"))
	require.NoError(t, err)
	assert.Equal(t, "bucket", client.Bucket())

	_, err = NewS3ClientWithConfig(context.Background(), &S3Config{})
	assert.Error(t, err)
}
