package main

import (
	"context"
	"time"

	catalogrepository "cowork/internal/catalog/repository"
	"cowork/internal/catalog/seed"
	catalogservice "cowork/internal/catalog/service"
	catalogvalidator "cowork/internal/catalog/validator"
	mongoMigration "cowork/internal/migrations/mongo"
	"cowork/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStores()
	defer cfg.GracefulShutdown()
	cfg.Log.Info("Starting migration job")

	if cfg.Client.Mongo != nil {
		migrateMongo(ctx, cfg)
	}
	if cfg.Client.MySQL != nil {
		migrateMySQL(cfg)
		if cfg.CatalogSeedFile != "" {
			seedCatalog(ctx, cfg)
		}
	}

	cfg.Log.Info("Migration completed successfully")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Mongo migration failed", "error", err)
	}
}

func migrateMySQL(cfg *config.Config) {
	if err := cfg.Client.MySQL.AutoMigrate(catalogrepository.Models()...); err != nil {
		cfg.Log.Fatal("MySQL migration failed", "error", err)
	}
	cfg.Log.Info("Catalog tables migrated", "database", cfg.MySQLDatabase)
}

// seedCatalog inserts the seed resources that are not in the catalog yet.
func seedCatalog(ctx context.Context, cfg *config.Config) {
	file, err := seed.Load(cfg.CatalogSeedFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalog seed", "error", err)
	}

	resourceValidator, err := catalogvalidator.NewResourceValidator()
	if err != nil {
		cfg.Log.Fatal("Failed to initialize resource validator", "error", err)
	}
	resources := catalogservice.NewResourceService(catalogrepository.NewGormResourceRepository(cfg), resourceValidator, nil, cfg)

	created, err := resources.Seed(ctx, file.Resources, JobName)
	if err != nil {
		cfg.Log.Fatal("Failed to seed catalog", "error", err)
	}
	cfg.Log.Info("Catalog seeded", "file", cfg.CatalogSeedFile, "created", created, "total", len(file.Resources))
}
