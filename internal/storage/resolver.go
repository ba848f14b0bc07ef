package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// BlobResolver exchanges image references between the transient and the
// canonical storage domain on top of any Store. Canonical references are
// store keys under <prefix>/images/; displayable references are produced by
// the configured URL function because a bare key is not renderable.
type BlobResolver struct {
	store      Store
	prefix     string
	displayURL func(key string) string
}

func NewBlobResolver(store Store, prefix string, displayURL func(key string) string) *BlobResolver {
	if displayURL == nil {
		displayURL = func(key string) string { return key }
	}
	return &BlobResolver{store: store, prefix: strings.TrimRight(prefix, "/"), displayURL: displayURL}
}

// NewGCSResolver builds the resolver for one document's images on a GCS
// bucket, using the bucket's public location for displayable references.
func NewGCSResolver(store *GCSStore, documentID string) *BlobResolver {
	return NewBlobResolver(store, "books/"+documentID, store.PublicURL)
}

// ToCanonical uploads the image bytes and returns the durable key.
func (r *BlobResolver) ToCanonical(ctx context.Context, _ string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image payload")
	}
	key := r.prefix + "/images/" + uuid.NewString() + extensionFor(contentType)
	if err := r.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// ToDisplayable translates a canonical key into a renderable location.
func (r *BlobResolver) ToDisplayable(_ context.Context, canonicalRef string) (string, error) {
	if canonicalRef == "" {
		return "", errors.New("empty canonical reference")
	}
	return r.displayURL(canonicalRef), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ""
	}
}
