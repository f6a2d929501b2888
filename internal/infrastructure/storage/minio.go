package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"receiptflow/internal/config"
)

// MinIOStorage implements service.ArtifactStore, generalized from the
// teacher's book-image uploader to arbitrary objects carrying tags as
// user-metadata and presigned read URLs (§6: artifact store boundary).
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

func NewMinIOStorage(cfg config.MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorage{client: client, bucket: cfg.Bucket}, nil
}

// Upload stores data at objectKey. tags ride along as MinIO user-metadata
// (x-amz-meta-* headers) since the artifact store contract has no
// first-class tagging concept of its own (DOMAIN STACK).
func (s *MinIOStorage) Upload(ctx context.Context, objectKey string, data []byte, contentType string, tags map[string]string) (publicID, secureURL string, err error) {
	reader := bytes.NewReader(data)

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		objectKey,
		reader,
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: tags,
		},
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	secureURL = fmt.Sprintf("https://%s/%s/%s", s.client.EndpointURL().Host, s.bucket, objectKey)
	return objectKey, secureURL, nil
}

// SignedURL returns a time-limited presigned GET URL, used when the
// bucket isn't configured for public read (§6).
func (s *MinIOStorage) SignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to presign object url: %w", err)
	}
	return presigned.String(), nil
}

// Delete removes a single object, used by the operator reconciliation path.
func (s *MinIOStorage) Delete(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
