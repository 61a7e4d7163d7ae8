package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/studyhub/studyhub/internal/config"
	"github.com/studyhub/studyhub/internal/remote"
)

// MinIOStore is the remote.BlobStore backed by a MinIO (S3-compatible) bucket.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

var _ remote.BlobStore = (*MinIOStore)(nil)

// NewMinIOStore creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	// resolved URLs are persisted in records and must not expire
	if cfg.PublicURL == "" {
		return nil, config.ErrMissingPublicURL
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStore{client: mc, bucket: cfg.Bucket, publicURL: cfg.PublicURL}
	// ensure bucket exists (idempotent)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// Store uploads the file content under path.
func (s *MinIOStore) Store(ctx context.Context, path string, f *remote.File) (remote.BlobRef, error) {
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(f.Data), int64(len(f.Data)),
		minio.PutObjectOptions{ContentType: contentType(f)})
	if err != nil {
		return remote.BlobRef{}, fmt.Errorf("put %s: %w", path, err)
	}
	return remote.BlobRef{Path: path}, nil
}

// ResolveURL returns the blob's URL under the public prefix.
func (s *MinIOStore) ResolveURL(_ context.Context, ref remote.BlobRef) (string, error) {
	return PublicURL(s.publicURL, ref), nil
}

// Open returns a ReadCloser for the stored object.
func (s *MinIOStore) Open(ctx context.Context, ref remote.BlobRef) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// perform a stat to ensure object exists
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}
