package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"cpicli/internal/config"
	apperrors "cpicli/internal/errors"
	"cpicli/internal/table"
)

// Category is a row of the category hierarchy
type Category struct {
	ID        string  `gorm:"primaryKey;size:64"`
	Name      string  `gorm:"size:255"`
	Weight    float64 `gorm:"not null"`
	Hierarchy int
	ParentID  *string `gorm:"size:64;index"`
}

// TableName implements gorm's tabler
func (Category) TableName() string { return CategoryTable }

// Price is one observed price of a product on a day
type Price struct {
	ID         uint      `gorm:"primaryKey"`
	Date       time.Time `gorm:"index;not null"`
	ProductID  string    `gorm:"size:64;index;not null"`
	CategoryID string    `gorm:"size:64;index"`
	Name       string    `gorm:"size:255"`
	Price      *float64  `gorm:"check:price >= 0"`
}

// TableName implements gorm's tabler
func (Price) TableName() string { return PriceTable }

// DatabaseSource reads prices and categories through GORM
type DatabaseSource struct {
	db              *gorm.DB
	pricesTable     string
	categoriesTable string
	logger          *slog.Logger
}

// OpenDatabase connects with the sqlite or postgres driver
func OpenDatabase(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (*DatabaseSource, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, apperrors.NewSourceError("connect to "+cfg.Driver+" database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewSourceError("get underlying sql.DB", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, apperrors.NewSourceError("ping "+cfg.Driver+" database", err)
	}

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Driver))
	return NewDatabaseSource(db, cfg.PricesTable, cfg.CategoriesTable, logger), nil
}

// NewDatabaseSource wraps an open connection. Empty table names fall back
// to the model defaults.
func NewDatabaseSource(db *gorm.DB, pricesTable, categoriesTable string, logger *slog.Logger) *DatabaseSource {
	if logger == nil {
		logger = slog.Default()
	}
	if pricesTable == "" {
		pricesTable = PriceTable
	}
	if categoriesTable == "" {
		categoriesTable = CategoryTable
	}
	return &DatabaseSource{
		db:              db,
		pricesTable:     pricesTable,
		categoriesTable: categoriesTable,
		logger:          logger,
	}
}

// DB exposes the connection for migrations and seeding tools
func (s *DatabaseSource) DB() *gorm.DB { return s.db }

// Migrate creates or updates both tables
func (s *DatabaseSource) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Table(s.categoriesTable).AutoMigrate(&Category{}); err != nil {
		return apperrors.NewStorageError("migrate "+s.categoriesTable, err)
	}
	if err := db.Table(s.pricesTable).AutoMigrate(&Price{}); err != nil {
		return apperrors.NewStorageError("migrate "+s.pricesTable, err)
	}
	return nil
}

// Seed inserts categories and prices in one transaction
func (s *DatabaseSource) Seed(ctx context.Context, categories []Category, prices []Price) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(categories) > 0 {
			if err := tx.Table(s.categoriesTable).CreateInBatches(categories, 500).Error; err != nil {
				return fmt.Errorf("insert categories: %w", err)
			}
		}
		if len(prices) > 0 {
			if err := tx.Table(s.pricesTable).CreateInBatches(prices, 1000).Error; err != nil {
				return fmt.Errorf("insert prices: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewStorageError("seed database", err)
	}
	s.logger.InfoContext(ctx, "seeded database",
		slog.Int("categories", len(categories)),
		slog.Int("prices", len(prices)))
	return nil
}

// LoadPrices implements Source
func (s *DatabaseSource) LoadPrices(ctx context.Context, from, to time.Time) (*table.Table, error) {
	q := s.db.WithContext(ctx).Table(s.pricesTable)
	if !from.IsZero() {
		q = q.Where("date >= ?", table.Day(from))
	}
	if !to.IsZero() {
		// dates are stored at midnight; include the whole last day
		q = q.Where("date < ?", table.Day(to).AddDate(0, 0, 1))
	}

	var rows []Price
	if err := q.Order("date").Order("product_id").Find(&rows).Error; err != nil {
		return nil, apperrors.NewSourceError("query "+s.pricesTable, err)
	}

	t := table.New(PriceTable, "date", "product_id", "category_id", "name", "price")
	for _, p := range rows {
		var price any
		if p.Price != nil {
			price = *p.Price
		}
		t.MustAppend(p.Date, p.ProductID, p.CategoryID, p.Name, price)
	}

	s.logger.InfoContext(ctx, "loaded prices from database",
		slog.String("table", s.pricesTable),
		slog.Int("rows", t.Len()))
	return t, nil
}

// LoadCategories implements Source
func (s *DatabaseSource) LoadCategories(ctx context.Context) (*table.Table, error) {
	var rows []Category
	if err := s.db.WithContext(ctx).Table(s.categoriesTable).Order("id").Find(&rows).Error; err != nil {
		return nil, apperrors.NewSourceError("query "+s.categoriesTable, err)
	}

	t := table.New(CategoryTable, "id", "name", "weight", "hierarchy", "parent")
	for _, c := range rows {
		var parent any
		if c.ParentID != nil {
			parent = *c.ParentID
		}
		t.MustAppend(c.ID, c.Name, c.Weight, c.Hierarchy, parent)
	}

	s.logger.InfoContext(ctx, "loaded categories from database",
		slog.String("table", s.categoriesTable),
		slog.Int("rows", t.Len()))
	return t, nil
}

// Close implements Source
func (s *DatabaseSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
