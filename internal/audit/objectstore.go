package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/retry"
)

// ObjectStore wraps the content-addressable object bucket evidence bundles
// are written to, date-sharded by day (spec.md §4.5/§6: `YYYY/MM/DD/<uuid>.json`).
type ObjectStore struct {
	client           *minio.Client
	bucket           string
	operationTimeout time.Duration
}

// NewObjectStore dials the configured endpoint and lazily creates the
// bucket if it does not already exist (spec.md §6: "Created lazily on
// service start").
func NewObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: new object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("audit: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("audit: create bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("audit: object store bucket created")
	}

	operationTimeout := cfg.OperationTimeout
	if operationTimeout <= 0 {
		operationTimeout = 2 * time.Second
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, operationTimeout: operationTimeout}, nil
}

// objectKey returns the date-sharded key for a bundle id at a given time.
func objectKey(createdAt time.Time, bundleID string) string {
	return fmt.Sprintf("%04d/%02d/%02d/%s.json", createdAt.Year(), createdAt.Month(), createdAt.Day(), bundleID)
}

// Put writes canonical bytes to the date-sharded key for bundleID and
// returns the key written.
func (o *ObjectStore) Put(ctx context.Context, bundleID string, createdAt time.Time, canonical []byte) (string, error) {
	key := objectKey(createdAt, bundleID)
	err := retry.Do(ctx, retry.DefaultAttempts, o.operationTimeout, func(ctx context.Context) error {
		_, err := o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(canonical), int64(len(canonical)),
			minio.PutObjectOptions{ContentType: "application/json"})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("audit: put object %s: %w", key, err)
	}
	return key, nil
}

// Get reads the object at key back.
func (o *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, retry.DefaultAttempts, o.operationTimeout, func(ctx context.Context) error {
		obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(obj); err != nil {
			return err
		}
		body = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: get object %s: %w", key, err)
	}
	return body, nil
}
