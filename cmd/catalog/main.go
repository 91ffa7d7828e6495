package main

import (
	"context"

	bookingrepository "cowork/internal/bookings/repository"
	"cowork/internal/catalog/handler"
	"cowork/internal/catalog/repository"
	"cowork/internal/catalog/seed"
	"cowork/internal/catalog/service"
	"cowork/internal/catalog/validator"
	"cowork/pkg/app"
	"cowork/pkg/config"
)

const ServiceName = "catalog"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStores()

	cfg.Log.Info("Starting Catalog service")
	serverApp := app.NewApplication(cfg)

	resourceService := initResourceService(cfg)
	serverApp.SetApp(cfg.Client.Pingers(), handler.NewResourceHandler(resourceService, cfg.Log))
	serverApp.Run()
}

func initResourceService(cfg *config.Config) service.ResourceService {
	resourceValidator, err := validator.NewResourceValidator()
	if err != nil {
		cfg.Log.Fatal("Failed to initialize resource validator", "error", err)
	}

	var repo repository.ResourceRepository
	if cfg.CatalogDriver == config.DriverMySQL {
		repo = repository.NewGormResourceRepository(cfg)
	} else {
		cfg.Log.Warn("Using in-memory catalog, resources are lost on restart")
		repo = repository.NewMemoryResourceRepository()
	}

	// Without the booking store the catalog cannot see references, so
	// deletes are not guarded against live bookings.
	var refs service.BookingReferenceChecker
	if cfg.StoreDriver == config.DriverMongo {
		refs = bookingrepository.NewMongoBookingRepository(cfg)
	}

	resourceService := service.NewResourceService(repo, resourceValidator, refs, cfg)
	if cfg.CatalogSeedFile != "" {
		seedCatalog(cfg, resourceService)
	}
	return resourceService
}

func seedCatalog(cfg *config.Config, resourceService service.ResourceService) {
	file, err := seed.Load(cfg.CatalogSeedFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalog seed", "error", err)
	}
	created, err := resourceService.Seed(context.Background(), file.Resources, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to seed catalog", "error", err)
	}
	cfg.Log.Info("Catalog seeded", "file", cfg.CatalogSeedFile, "created", created)
}
