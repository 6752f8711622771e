package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cpicli/internal/config"
	"cpicli/internal/datagen"
	"cpicli/internal/exporter"
	"cpicli/internal/infrastructure"
	"cpicli/internal/loader"
	"cpicli/internal/table"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("datagen failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	defaults := datagen.DefaultOptions()

	fs := flag.NewFlagSet("datagen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	seed := fs.Uint64("seed", defaults.Seed, "random seed")
	start := fs.String("start", defaults.Start.Format(table.DateLayout), "first price date YYYY-MM-DD")
	days := fs.Int("days", defaults.Days, "number of days to generate")
	products := fs.Int("products", defaults.Products, "size of the product pool")
	daily := fs.Int("daily", defaults.DailyProducts, "products observed per day")
	adjustEvery := fs.Int("adjust-every", defaults.AdjustEvery, "days between price revisions")
	adjustChance := fs.Float64("adjust-chance", defaults.AdjustChance, "probability a product is repriced at a revision")
	out := fs.String("out", "data", "output directory for categories.csv and prices.csv")
	driver := fs.String("driver", "sqlite", "database driver for -dsn: sqlite | postgres")
	dsn := fs.String("dsn", "", "also seed this database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if logger == nil {
		logger = infrastructure.NewLoggerWithWriter(stderr, "info")
	}

	startDate, err := table.ParseDate(*start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	opts := defaults
	opts.Seed = *seed
	opts.Start = startDate
	opts.Days = *days
	opts.Products = *products
	opts.DailyProducts = *daily
	opts.AdjustEvery = *adjustEvery
	opts.AdjustChance = *adjustChance

	generator, err := datagen.NewGenerator(opts, logger)
	if err != nil {
		return err
	}
	ds, err := generator.Generate(ctx)
	if err != nil {
		return err
	}

	pricesPath, categoriesPath, err := ds.WriteCSV(exporter.NewCSVWriter(*out, logger))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d categories to %s\n", len(ds.Categories), categoriesPath)
	fmt.Fprintf(stdout, "Wrote %d prices to %s\n", len(ds.Prices), pricesPath)

	if *dsn == "" {
		return nil
	}
	db, err := loader.OpenDatabase(ctx, config.SourceConfig{
		Kind:   config.SourceDatabase,
		Driver: *driver,
		DSN:    *dsn,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ds.Seed(ctx, db); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	fmt.Fprintf(stdout, "Seeded %s database\n", *driver)
	return nil
}
