package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cpicli/internal/config"
	apperrors "cpicli/internal/errors"
	"cpicli/internal/table"
)

// querier is the subset of pgxpool.Pool the warehouse reads through
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WarehouseSource runs raw SQL against the analytical Postgres database
type WarehouseSource struct {
	pool            *pgxpool.Pool
	db              querier
	pricesTable     string
	categoriesTable string
	logger          *slog.Logger
}

// OpenWarehouse creates a connection pool and verifies it with a ping
func OpenWarehouse(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (*WarehouseSource, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, apperrors.NewConfigError("parse warehouse dsn", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.NewSourceError("create warehouse pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewSourceError("ping warehouse", err)
	}

	logger.InfoContext(ctx, "connected to warehouse",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.String("database", poolCfg.ConnConfig.Database),
		slog.Int("max_conns", int(poolCfg.MaxConns)))

	src := newWarehouseSource(pool, cfg.PricesTable, cfg.CategoriesTable, logger)
	src.pool = pool
	return src, nil
}

func newWarehouseSource(db querier, pricesTable, categoriesTable string, logger *slog.Logger) *WarehouseSource {
	if logger == nil {
		logger = slog.Default()
	}
	if pricesTable == "" {
		pricesTable = PriceTable
	}
	if categoriesTable == "" {
		categoriesTable = CategoryTable
	}
	return &WarehouseSource{
		db:              db,
		pricesTable:     pricesTable,
		categoriesTable: categoriesTable,
		logger:          logger,
	}
}

// priceQuery selects the price window. Columns are cast so pgx decodes
// them into plain Go values.
func priceQuery(tableName string, from, to time.Time) (string, []any) {
	sql := fmt.Sprintf(`SELECT date::date AS date, product_id::text AS product_id,
	category_id::text AS category_id, name::text AS name, price::float8 AS price
FROM %s`, pgx.Identifier{tableName}.Sanitize())

	var args []any
	var where []string
	if !from.IsZero() {
		args = append(args, table.Day(from))
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, table.Day(to))
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			sql += "\nWHERE " + w
		} else {
			sql += " AND " + w
		}
	}
	return sql + "\nORDER BY date, product_id", args
}

func categoryQuery(tableName string) string {
	return fmt.Sprintf(`SELECT id::text AS id, name::text AS name, weight::float8 AS weight,
	hierarchy::int8 AS hierarchy, parent_id::text AS parent_id
FROM %s
ORDER BY id`, pgx.Identifier{tableName}.Sanitize())
}

// LoadPrices implements Source
func (s *WarehouseSource) LoadPrices(ctx context.Context, from, to time.Time) (*table.Table, error) {
	sql, args := priceQuery(s.pricesTable, from, to)
	t, err := s.queryTable(ctx, PriceTable, s.pricesTable, sql, args...)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "loaded prices from warehouse",
		slog.String("table", s.pricesTable),
		slog.Int("rows", t.Len()))
	return t, nil
}

// LoadCategories implements Source
func (s *WarehouseSource) LoadCategories(ctx context.Context) (*table.Table, error) {
	t, err := s.queryTable(ctx, CategoryTable, s.categoriesTable, categoryQuery(s.categoriesTable))
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "loaded categories from warehouse",
		slog.String("table", s.categoriesTable),
		slog.Int("rows", t.Len()))
	return t, nil
}

func (s *WarehouseSource) queryTable(ctx context.Context, name, source, sql string, args ...any) (*table.Table, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPgError(source, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	t := table.New(name, canonicalColumns(columns)...)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, apperrors.NewParsingError("decode "+source+" row", err)
		}
		if err := t.Append(values...); err != nil {
			return nil, apperrors.NewParsingError("decode "+source+" row", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(source, err)
	}
	return t, nil
}

// Postgres error codes treated specially
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

func classifyPgError(source string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedTable:
			return apperrors.NewNotFoundError("warehouse table " + source)
		case pgUndefinedColumn:
			return apperrors.NewSourceError("warehouse table "+source+" schema mismatch", err).
				WithContext("detail", pgErr.Message)
		}
	}
	return apperrors.NewSourceError("query warehouse table "+source, err)
}

// Close implements Source
func (s *WarehouseSource) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
