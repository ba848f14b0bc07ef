package storage

import (
	"context"
	"io"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	bucketEnv       = "LESSONFORGE_GCS_BUCKET"
	emulatorHostEnv = "STORAGE_EMULATOR_HOST"
)

// GCSStore implements Store on a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore reads the bucket name from LESSONFORGE_GCS_BUCKET. When
// STORAGE_EMULATOR_HOST is set the client connects unauthenticated, matching
// local emulator runs.
func NewGCSStore(ctx context.Context, logger *zap.Logger) (*GCSStore, error) {
	bucket := os.Getenv(bucketEnv)
	if bucket == "" {
		return nil, errors.Errorf("missing env var %s", bucketEnv)
	}

	var opts []option.ClientOption
	if os.Getenv(emulatorHostEnv) != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage client")
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gcs").With(zap.String("bucket", bucket))
	logger.Debug("object storage initialized")

	return &GCSStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "failed to write object %q", key)
	}
	return errors.Wrapf(w.Close(), "failed to finish writing object %q", key)
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "key %q", key)
		}
		return nil, errors.Wrapf(err, "failed to open object %q", key)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	return data, errors.Wrapf(err, "failed to read object %q", key)
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	var infos []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list objects under %q", prefix)
		}
		infos = append(infos, ObjectInfo{Key: attrs.Name, LastModified: attrs.Updated})
	}
	return infos, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return errors.Wrapf(ErrNotFound, "key %q", key)
	}
	return errors.Wrapf(err, "failed to delete object %q", key)
}

// PublicURL returns the browser-addressable location of a key.
func (s *GCSStore) PublicURL(key string) string {
	if host := os.Getenv(emulatorHostEnv); host != "" {
		return strings.TrimRight(host, "/") + "/" + s.bucket + "/" + key
	}
	return "https://storage.googleapis.com/" + s.bucket + "/" + key
}
