package datagen

import (
	"context"
	"fmt"
	"strconv"

	"cpicli/internal/exporter"
	"cpicli/internal/loader"
	"cpicli/internal/table"
)

// Output file names
const (
	CategoriesFile = "categories.csv"
	PricesFile     = "prices.csv"
)

var (
	categoryHeaders = []string{"id", "name", "weight", "hierarchy", "parent_id"}
	priceHeaders    = []string{"date", "product_id", "category_id", "name", "price"}
)

// WriteCSV writes categories.csv and prices.csv through w and returns their
// paths
func (ds *Dataset) WriteCSV(w *exporter.CSVWriter) (pricesPath, categoriesPath string, err error) {
	records := make([][]string, 0, len(ds.Categories))
	for _, c := range ds.Categories {
		records = append(records, []string{
			c.ID,
			c.Name,
			strconv.FormatFloat(c.Weight, 'f', -1, 64),
			strconv.Itoa(c.Hierarchy),
			c.Parent,
		})
	}
	categoriesPath, err = w.WriteSimpleCSV(CategoriesFile, categoryHeaders, records)
	if err != nil {
		return "", "", fmt.Errorf("write categories: %w", err)
	}

	stream, err := w.CreateStreamWriter(PricesFile, priceHeaders)
	if err != nil {
		return "", "", fmt.Errorf("write prices: %w", err)
	}
	for _, p := range ds.Prices {
		record := []string{
			p.Date.Format(table.DateLayout),
			p.ProductID,
			p.CategoryID,
			p.Name,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return "", "", fmt.Errorf("write price row: %w", err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", "", fmt.Errorf("close prices: %w", err)
	}
	return stream.Path(), categoriesPath, nil
}

// Models converts the dataset into database rows
func (ds *Dataset) Models() ([]loader.Category, []loader.Price) {
	categories := make([]loader.Category, len(ds.Categories))
	for i, c := range ds.Categories {
		categories[i] = loader.Category{
			ID:        c.ID,
			Name:      c.Name,
			Weight:    c.Weight,
			Hierarchy: c.Hierarchy,
		}
		if c.Parent != "" {
			parent := c.Parent
			categories[i].ParentID = &parent
		}
	}

	prices := make([]loader.Price, len(ds.Prices))
	for i, p := range ds.Prices {
		price := p.Price
		prices[i] = loader.Price{
			Date:       p.Date,
			ProductID:  p.ProductID,
			CategoryID: p.CategoryID,
			Name:       p.Name,
			Price:      &price,
		}
	}
	return categories, prices
}

// Seed migrates the database schema and inserts the dataset
func (ds *Dataset) Seed(ctx context.Context, db *loader.DatabaseSource) error {
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	categories, prices := ds.Models()
	return db.Seed(ctx, categories, prices)
}
