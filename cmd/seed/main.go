// Command seed imports a product catalogue into the database. The catalogue
// is a gzipped JSON-lines file read from S3 when enabled, falling back to the
// local file system.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/cache"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("file", "data/catalog/catalog.jsonl.gz", "catalogue path, relative to the S3 prefix when S3 is enabled")
	generate := flag.Bool("generate", false, "write the sample catalogue to -file and exit")
	flag.Parse()

	if *generate {
		if err := writeSampleCatalog(*path); err != nil {
			return err
		}
		fmt.Printf("Sample catalogue with %d products written to %s\n", len(sampleCatalog), *path)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize catalogue loader with S3 and local fallback
	fileLoader := catalog.NewFileLoader(logger)
	var s3Loader catalog.Loader
	if cfg.Catalog.S3Enabled {
		s3Loader, err = catalog.NewS3Loader(ctx, cfg.Catalog.Bucket, cfg.Catalog.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		}
	} else {
		logger.Info().Msg("using local file system for catalogue files (S3 disabled)")
	}
	loader := catalog.NewFallbackLoader(s3Loader, fileLoader, cfg.Catalog.Prefix, cfg.Catalog.S3Enabled, logger)

	products, err := loader.Load(ctx, *path)
	if err != nil {
		return fmt.Errorf("failed to load catalogue: %w", err)
	}

	// Drop cached entries of updated products when the API runs with Redis.
	var invalidator catalog.Invalidator
	if cfg.Cache.Enabled() {
		rdb, err := cache.NewClient(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to redis, cached products expire on their TTL")
		} else {
			defer rdb.Close()
			invalidator = cache.NewProductRepository(repository.NewProductRepository(pool, logger), rdb, cfg.Cache.TTL, logger)
		}
	}

	importer := catalog.NewImporter(
		repository.NewProductRepository(pool, logger),
		repository.NewStockLedger(nil, logger),
		invalidator,
		logger,
	)

	result, err := importer.Import(ctx, products)
	if err != nil {
		return fmt.Errorf("failed to import catalogue: %w", err)
	}

	fmt.Printf("Imported %d products (%d created, %d updated)\n", result.Created+result.Updated, result.Created, result.Updated)
	return nil
}
