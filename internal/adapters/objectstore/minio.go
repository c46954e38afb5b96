// Package objectstore adapts a MinIO/S3-compatible bucket to the pipeline's
// object store interface.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pricewise/catalog-ingest/config"
)

// Client streams objects out of a single bucket.
type Client struct {
	mc     *minio.Client
	bucket string
}

// New constructs a Client from object store configuration.
func New(cfg config.ObjectStoreConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}
	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

// Fetch opens the object under key for streaming. Reading past the header
// verifies the object exists; minio defers the stat to the first read, so an
// immediate error check keeps missing-object failures at the call site.
func (c *Client) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	if _, err = obj.Stat(); err != nil {
		closeErr := obj.Close()
		if closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return obj, nil
}
