package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"cpicli/internal/config"
	apperrors "cpicli/internal/errors"
	"cpicli/internal/table"
)

// Source loads the two input tables of a computation
type Source interface {
	// LoadPrices returns price rows dated within [from, to]. A zero bound is open.
	LoadPrices(ctx context.Context, from, to time.Time) (*table.Table, error)
	LoadCategories(ctx context.Context) (*table.Table, error)
	Close() error
}

// Table names reported on loaded tables
const (
	PriceTable    = "price"
	CategoryTable = "category"
)

// columnAliases maps stored schema names onto the names the calculator reads
var columnAliases = map[string]string{
	"parent_id": "parent",
}

func canonicalColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if alias, ok := columnAliases[c]; ok {
			out[i] = alias
			continue
		}
		out[i] = c
	}
	return out
}

// Open builds the source selected by cfg.Kind
func Open(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (Source, error) {
	logger = logger.With(slog.String("component", "loader"), slog.String("source", cfg.Kind))

	switch cfg.Kind {
	case config.SourceFile:
		return NewFileSource(cfg.PricesPath, cfg.CategoriesPath, logger), nil
	case config.SourceDatabase:
		return OpenDatabase(ctx, cfg, logger)
	case config.SourceWarehouse:
		return OpenWarehouse(ctx, cfg, logger)
	case config.SourceBucket:
		return OpenBucket(ctx, cfg, logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown source kind %q", cfg.Kind), nil)
	}
}

// LoadBoth loads prices and categories concurrently
func LoadBoth(ctx context.Context, src Source, from, to time.Time) (prices, categories *table.Table, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = src.LoadPrices(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = src.LoadCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prices, categories, nil
}

// filterByDate keeps rows within [from, to]. Rows whose date is absent or
// unparseable are kept so the calculator can report them.
func filterByDate(t *table.Table, from, to time.Time) *table.Table {
	if from.IsZero() && to.IsZero() {
		return t
	}

	columns := t.Columns()
	out := table.New(t.Name(), columns...)
	for i := 0; i < t.Len(); i++ {
		d, ok, err := t.Date(i, "date")
		if err == nil && ok {
			if !from.IsZero() && d.Before(table.Day(from)) {
				continue
			}
			if !to.IsZero() && d.After(table.Day(to)) {
				continue
			}
		}
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j], _ = t.Value(i, c)
		}
		out.MustAppend(row...)
	}
	return out
}
