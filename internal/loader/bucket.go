package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"cpicli/internal/config"
	apperrors "cpicli/internal/errors"
	"cpicli/internal/table"
)

// ObjectStore is the bucket access the loader and report uploader need
type ObjectStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Put(ctx context.Context, name, contentType string, r io.Reader) error
	Close() error
}

// ErrObjectNotFound is returned by ObjectStore.Open for absent objects
var ErrObjectNotFound = errors.New("object not found")

// GCSStore implements ObjectStore on one Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a storage client. Without a credentials file the
// application default credentials are used.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewNetworkError("create storage client", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Open implements ObjectStore
func (g *GCSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", g.bucket, name, ErrObjectNotFound)
	}
	return r, err
}

// List implements ObjectStore
func (g *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Put implements ObjectStore
func (g *GCSStore) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", g.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", g.bucket, name, err)
	}
	return nil
}

// Close implements ObjectStore
func (g *GCSStore) Close() error { return g.client.Close() }

// BucketSource reads CSV objects from a bucket. An object name ending in
// "/" is a prefix whose CSV objects are concatenated in name order, which
// suits daily price partitions.
type BucketSource struct {
	store            ObjectStore
	pricesObject     string
	categoriesObject string
	logger           *slog.Logger
}

// OpenBucket connects to the configured bucket
func OpenBucket(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (*BucketSource, error) {
	store, err := NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "opened bucket source", slog.String("bucket", cfg.Bucket))
	return NewBucketSource(store, cfg.PricesObject, cfg.CategoriesObject, logger), nil
}

// NewBucketSource creates a source over any ObjectStore
func NewBucketSource(store ObjectStore, pricesObject, categoriesObject string, logger *slog.Logger) *BucketSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BucketSource{
		store:            store,
		pricesObject:     pricesObject,
		categoriesObject: categoriesObject,
		logger:           logger,
	}
}

// LoadPrices implements Source
func (s *BucketSource) LoadPrices(ctx context.Context, from, to time.Time) (*table.Table, error) {
	t, err := s.load(ctx, PriceTable, s.pricesObject)
	if err != nil {
		return nil, err
	}
	return filterByDate(t, from, to), nil
}

// LoadCategories implements Source
func (s *BucketSource) LoadCategories(ctx context.Context) (*table.Table, error) {
	return s.load(ctx, CategoryTable, s.categoriesObject)
}

// Close implements Source
func (s *BucketSource) Close() error { return s.store.Close() }

func (s *BucketSource) load(ctx context.Context, name, object string) (*table.Table, error) {
	objects := []string{object}
	if strings.HasSuffix(object, "/") {
		listed, err := s.store.List(ctx, object)
		if err != nil {
			return nil, apperrors.NewNetworkError("list "+object, err)
		}
		objects = objects[:0]
		for _, o := range listed {
			if strings.HasSuffix(strings.ToLower(o), ".csv") {
				objects = append(objects, o)
			}
		}
		sort.Strings(objects)
		if len(objects) == 0 {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("csv objects under %s", object))
		}
	}

	var merged *table.Table
	for _, o := range objects {
		t, err := s.readObject(ctx, name, o)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = t
			continue
		}
		if err := appendTable(merged, t); err != nil {
			return nil, apperrors.NewParsingError("merge "+o, err)
		}
	}

	s.logger.InfoContext(ctx, "loaded bucket objects",
		slog.String("table", name),
		slog.Int("objects", len(objects)),
		slog.Int("rows", merged.Len()))
	return merged, nil
}

func (s *BucketSource) readObject(ctx context.Context, name, object string) (*table.Table, error) {
	r, err := s.store.Open(ctx, object)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, apperrors.NewNotFoundError("object " + object)
		}
		return nil, apperrors.NewNetworkError("open "+object, err)
	}
	defer r.Close()
	return ReadCSV(r, name)
}

// appendTable copies src rows into dst by column name
func appendTable(dst, src *table.Table) error {
	columns := dst.Columns()
	if missing := src.Missing(columns...); len(missing) > 0 {
		return fmt.Errorf("columns differ, missing %s", strings.Join(missing, ", "))
	}
	for i := 0; i < src.Len(); i++ {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j], _ = src.Value(i, c)
		}
		if err := dst.Append(row...); err != nil {
			return err
		}
	}
	return nil
}
