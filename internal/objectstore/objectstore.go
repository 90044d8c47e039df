// Package objectstore keeps uploaded thumbnails and banners in an
// S3-compatible bucket. Clients upload directly with presigned URLs; the
// server only checks, links and deletes objects.
package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = fmt.Errorf("object not found")

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

type Store interface {
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewKey makes a fresh object key under prefix.
func NewKey(prefix string) string {
	return path.Join(prefix, uuid.NewString())
}

type Minio struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

var _ Store = (*Minio)(nil)

// NewMinio connects to endpoint. publicURL is the base that stored keys are
// served from; when empty it is derived from the endpoint and bucket.
func NewMinio(endpoint, accessKey, secretKey, bucket, publicURL string, secure bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore.NewMinio: could not create client: %w", err)
	}

	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint + "/" + bucket
	}

	return &Minio{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("objectstore.Minio.EnsureBucket: could not check bucket %s: %w", m.bucket, err)
	}

	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("objectstore.Minio.EnsureBucket: could not create bucket %s: %w", m.bucket, err)
	}

	return nil
}

func (m *Minio) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, expiry)
	if err != nil {
		return "", fmt.Errorf("objectstore.Minio.PresignPut: %w", err)
	}

	return u.String(), nil
}

func (m *Minio) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if res := minio.ToErrorResponse(err); res.Code == "NoSuchKey" || res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("objectstore.Minio.Stat: %s: %w", key, ErrNotFound)
		}

		return nil, fmt.Errorf("objectstore.Minio.Stat: %w", err)
	}

	return &ObjectInfo{Key: info.Key, Size: info.Size, ContentType: info.ContentType}, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Minio) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}

		return fmt.Errorf("objectstore.Minio.Delete: %w", err)
	}

	return nil
}

func (m *Minio) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return m.publicURL + "/" + strings.Join(parts, "/")
}
