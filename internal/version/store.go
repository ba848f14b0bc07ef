// Package version keeps named, timestamped, immutable snapshots of a book on
// the blob store. Name uniqueness is a write-time convention guarded by a
// collision check, not a storage-level transaction.
package version

import (
	"context"
	stderrors "errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lessonforge/lessonforge/internal/book"
	"github.com/lessonforge/lessonforge/internal/storage"
)

// OriginalName labels the implicit pseudo-version: the aggregate as first
// loaded, held in memory, never written to the store and never deletable.
const OriginalName = "Original"

var (
	// ErrNameExists is returned by Save on a name collision; the caller must
	// obtain explicit confirmation and retry with SaveOverwrite.
	ErrNameExists = stderrors.New("a version with this name already exists")
	// ErrImmutableOriginal rejects deleting or overwriting the original
	// pseudo-version.
	ErrImmutableOriginal = stderrors.New("the original version cannot be modified")
	ErrEmptyName         = stderrors.New("version name must not be empty")
)

// Record identifies one saved snapshot. The original pseudo-version has an
// empty StorageKey.
type Record struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	StorageKey string    `json:"storageKey"`
}

// Store namespaces version objects under a per-document prefix.
type Store struct {
	blob     storage.Store
	prefix   string
	original *book.Book
	loadedAt time.Time
	logger   *zap.Logger
	now      func() time.Time
}

// New snapshots the first-loaded aggregate as the original pseudo-version and
// namespaces persisted snapshots under books/<documentID>/versions/.
func New(blob storage.Store, documentID string, original *book.Book, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blob:     blob,
		prefix:   "books/" + documentID + "/versions/",
		original: original.Clone(),
		loadedAt: time.Now(),
		logger:   logger.Named("versions"),
		now:      time.Now,
	}
}

// Save persists a new named snapshot. A name collision returns ErrNameExists
// without writing; this check is inherently racy under concurrent saves from
// two sessions, which the single-author model accepts.
func (s *Store) Save(ctx context.Context, b *book.Book, name string) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return Record{}, ErrEmptyName
	}
	records, err := s.List(ctx)
	if err != nil {
		return Record{}, err
	}
	for _, rec := range records {
		if rec.Name == name {
			return Record{}, errors.Wrapf(ErrNameExists, "name %q", name)
		}
	}
	return s.write(ctx, b, name)
}

// SaveOverwrite persists a snapshot after the author explicitly confirmed
// replacing the existing version of the same name.
func (s *Store) SaveOverwrite(ctx context.Context, b *book.Book, name string) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return Record{}, ErrEmptyName
	}
	if name == OriginalName {
		return Record{}, ErrImmutableOriginal
	}
	return s.write(ctx, b, name)
}

func (s *Store) write(ctx context.Context, b *book.Book, name string) (Record, error) {
	data, err := book.MarshalJSON(b)
	if err != nil {
		return Record{}, err
	}
	key := s.key(name)
	if err := s.blob.Put(ctx, key, data, "application/json"); err != nil {
		return Record{}, errors.Wrapf(err, "failed to save version %q", name)
	}
	s.logger.Info("version saved", zap.String("name", name), zap.String("key", key))
	return Record{Name: name, CreatedAt: s.now(), StorageKey: key}, nil
}

// List returns the original pseudo-version first, then persisted snapshots
// newest-first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	infos, err := s.blob.List(ctx, s.prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list versions")
	}

	records := []Record{{Name: OriginalName, CreatedAt: s.loadedAt}}
	saved := make([]Record, 0, len(infos))
	for _, info := range infos {
		name, ok := s.nameFromKey(info.Key)
		if !ok {
			continue
		}
		saved = append(saved, Record{Name: name, CreatedAt: info.LastModified, StorageKey: info.Key})
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].CreatedAt.After(saved[j].CreatedAt) })
	return append(records, saved...), nil
}

// Load materializes the aggregate a record points at.
func (s *Store) Load(ctx context.Context, rec Record) (*book.Book, error) {
	if rec.StorageKey == "" {
		return s.original.Clone(), nil
	}
	data, err := s.blob.Get(ctx, rec.StorageKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load version %q", rec.Name)
	}
	return book.Load(data)
}

// Delete removes a persisted snapshot. The original pseudo-version is not
// deletable.
func (s *Store) Delete(ctx context.Context, rec Record) error {
	if rec.StorageKey == "" {
		return ErrImmutableOriginal
	}
	if err := s.blob.Delete(ctx, rec.StorageKey); err != nil {
		return errors.Wrapf(err, "failed to delete version %q", rec.Name)
	}
	s.logger.Info("version deleted", zap.String("name", rec.Name))
	return nil
}

func (s *Store) key(name string) string {
	return s.prefix + url.PathEscape(name) + ".json"
}

func (s *Store) nameFromKey(key string) (string, bool) {
	base := strings.TrimPrefix(key, s.prefix)
	base = strings.TrimSuffix(base, ".json")
	if base == "" || strings.Contains(base, "/") {
		return "", false
	}
	name, err := url.PathUnescape(base)
	if err != nil {
		return "", false
	}
	return name, true
}
