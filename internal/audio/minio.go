package audio

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nitesh/lega/internal/config"
)

// Minio uploads narration clips to an S3-compatible bucket.
type Minio struct {
	client *minio.Client
	bucket string
	cfg    config.MinioConfig
}

func NewMinio(cfg config.MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create minio client: %w", err)
	}
	return &Minio{client: client, bucket: cfg.Bucket, cfg: cfg}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("audio: check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("audio: create bucket: %w", err)
		}
	}
	return nil
}

func (m *Minio) Upload(ctx context.Context, name string, data []byte) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("audio: put object: %w", err)
	}

	if m.cfg.PresignExpiry > 0 {
		u, err := m.client.PresignedGetObject(ctx, m.bucket, name, m.cfg.PresignExpiry, nil)
		if err != nil {
			return "", fmt.Errorf("audio: presign: %w", err)
		}
		return u.String(), nil
	}
	return m.PublicURL(name), nil
}

// PublicURL returns a plain URL for the object (if bucket policy allows)
func (m *Minio) PublicURL(name string) string {
	scheme := "http"
	if m.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.cfg.Endpoint, m.bucket, name)
}
