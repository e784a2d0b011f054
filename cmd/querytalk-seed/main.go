// Command querytalk-seed applies the catalog migrations, generates the
// demo entertainment dataset, and registers it so the API can answer
// questions immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	catalogpostgres "github.com/querytalk/querytalk/internal/catalog/postgres"
	"github.com/querytalk/querytalk/internal/config"
	"github.com/querytalk/querytalk/internal/migrations"
	"github.com/querytalk/querytalk/internal/observability"
	"github.com/querytalk/querytalk/internal/seed"
	s3store "github.com/querytalk/querytalk/internal/storage/s3"
)

func main() {
	randomSeed := flag.Int64("seed", 1, "deterministic seed for the generated dataset")
	skipMigrations := flag.Bool("skip-migrations", false, "do not apply catalog migrations before seeding")
	flag.Parse()

	cfg, err := config.LoadFromEnv("querytalk-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := catalogpostgres.Open(ctx, catalogpostgres.DBConfig{
		DSN:             cfg.Catalog.DSN,
		MaxOpenConns:    cfg.Catalog.MaxOpenConns,
		MaxIdleConns:    cfg.Catalog.MaxIdleConns,
		ConnMaxIdleTime: cfg.Catalog.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Catalog.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open catalog db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if !*skipMigrations {
		applied, err := migrations.NewRunner().Up(ctx, db, 0)
		if err != nil {
			logger.Error("migrations failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Int("count", applied))
	}

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	seeder := &seed.Seeder{
		Logger:  logger,
		Catalog: catalogpostgres.NewRepository(db),
		Store:   objectStore,
		Dataset: cfg.Dataset.Name,
	}
	if err := seeder.Run(ctx, *randomSeed); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset seeded", slog.String("dataset", cfg.Dataset.Name))
}
