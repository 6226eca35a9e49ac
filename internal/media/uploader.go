package media

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Uploader stores media objects in an S3-compatible bucket.
type S3Uploader struct {
	client *minio.Client
	cfg    S3Config
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &S3Uploader{client: client, cfg: cfg}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, name, mimeType string, size int64, body io.Reader) (*UploadResult, error) {
	publicID := uuid.NewString()

	_, err := u.client.PutObject(ctx, u.cfg.Bucket, publicID, body, size, minio.PutObjectOptions{
		ContentType: mimeType,
		UserMetadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", publicID, err)
	}

	scheme := "http"
	if u.cfg.UseSSL {
		scheme = "https"
	}
	return &UploadResult{
		PublicID: publicID,
		URL:      fmt.Sprintf("%s://%s/%s/%s", scheme, u.cfg.Endpoint, u.cfg.Bucket, publicID),
	}, nil
}

func (u *S3Uploader) Remove(ctx context.Context, publicID string) error {
	err := u.client.RemoveObject(ctx, u.cfg.Bucket, publicID, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove object %q: %w", publicID, err)
	}
	return nil
}
