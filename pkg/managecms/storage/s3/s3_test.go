package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-manage/pkg/managecms"
)

func TestS3Backend_Configuration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("Defaults", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.Equal(t, time.Hour, backend.presignDuration)
	})

	t.Run("MinIOEndpoint", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
			PresignDuration: 7200,
		})
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, backend.presignDuration)
		assert.True(t, backend.config.UsePathStyle)
	})
}

func TestS3Backend_Encryption(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		algorithm string
		keyID     string
	}{
		{name: "disabled", config: Config{}, algorithm: ""},
		{name: "aes256", config: Config{EnableSSE: true, SSEAlgorithm: "AES256"}, algorithm: "AES256"},
		{name: "kms without key", config: Config{EnableSSE: true, SSEAlgorithm: "aws:kms"}, algorithm: "aws:kms"},
		{name: "kms with key", config: Config{EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"}, algorithm: "aws:kms", keyID: "key-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backend{config: tt.config}
			algorithm, keyID := b.encryption()
			assert.Equal(t, tt.algorithm, string(algorithm))
			if tt.keyID == "" {
				assert.Nil(t, keyID)
			} else {
				require.NotNil(t, keyID)
				assert.Equal(t, tt.keyID, *keyID)
			}
		})
	}
}

func TestS3Backend_PresignedDownloadURL(t *testing.T) {
	backend, err := New(Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	// Presigning is local and needs no server
	u, err := backend.GetDownloadURL(context.Background(), "assets/a1/en/logo.png", "logo.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/test-bucket/assets/a1/en/logo.png"))
	assert.Contains(t, u, "X-Amz-Signature")
	assert.Contains(t, u, "response-content-disposition")
}

// TestS3Backend_Integration needs a running MinIO instance or S3 credentials
func TestS3Backend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("AWS_S3_ENDPOINT")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	bucket := os.Getenv("AWS_S3_BUCKET")
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		t.Skip("Skipping integration test: S3/MinIO environment variables not set")
	}

	backend, err := New(Config{
		Bucket:                 bucket,
		Region:                 "us-east-1",
		AccessKeyID:            accessKey,
		SecretAccessKey:        secretKey,
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	objectKey := fmt.Sprintf("test/integration/%d/en/file.txt", time.Now().UnixNano())
	copyKey := strings.Replace(objectKey, "/en/", "/es/", 1)
	testData := []byte("Hello from S3 integration test!")

	t.Run("UploadAndDownload", func(t *testing.T) {
		err := backend.UploadWithParams(ctx, bytes.NewReader(testData), managecms.UploadParams{ObjectKey: objectKey, MimeType: "text/plain"})
		require.NoError(t, err)

		reader, err := backend.Download(ctx, objectKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, data)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, objectKey)
		require.NoError(t, err)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "text/plain", meta.ContentType)
		assert.NotEmpty(t, meta.ETag)
	})

	t.Run("Copy", func(t *testing.T) {
		require.NoError(t, backend.Copy(ctx, objectKey, copyKey))

		meta, err := backend.GetObjectMeta(ctx, copyKey)
		require.NoError(t, err)
		assert.Equal(t, int64(len(testData)), meta.Size)
	})

	t.Run("MissingObject", func(t *testing.T) {
		_, err := backend.GetObjectMeta(ctx, "nonexistent/object.txt")
		assert.ErrorIs(t, err, managecms.ErrObjectNotFound)

		_, err = backend.Download(ctx, "nonexistent/object.txt")
		assert.ErrorIs(t, err, managecms.ErrObjectNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, objectKey))
		require.NoError(t, backend.Delete(ctx, copyKey))

		_, err := backend.Download(ctx, objectKey)
		assert.Error(t, err)
	})
}
