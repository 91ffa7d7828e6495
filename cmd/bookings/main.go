package main

import (
	"context"

	"cowork/internal/bookings/consumer"
	"cowork/internal/bookings/events"
	"cowork/internal/bookings/handler"
	"cowork/internal/bookings/locker"
	"cowork/internal/bookings/repository"
	"cowork/internal/bookings/service"
	"cowork/internal/bookings/validator"
	catalogrepository "cowork/internal/catalog/repository"
	"cowork/internal/catalog/seed"
	catalogservice "cowork/internal/catalog/service"
	catalogvalidator "cowork/internal/catalog/validator"
	"cowork/pkg/app"
	"cowork/pkg/config"
	"cowork/pkg/kafka"
	kafka_config "cowork/pkg/kafka/config"
	kafka_middleware "cowork/pkg/kafka/middleware"
	"cowork/pkg/rabbitmq"
)

const (
	ServiceName  = "bookings"
	eventsSource = "cowork-bookings"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStores()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)

	bookingRepo := initBookingRepository(cfg)
	resources := initCatalog(cfg, bookingRepo)
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	availability := service.NewAvailabilityService(bookingRepo, resources, cfg)
	bookingService := service.NewBookingService(
		bookingRepo,
		resources,
		availability,
		initLocker(cfg),
		initPublisher(cfg, kafkaCfg, serverApp),
		bookingValidator,
		cfg,
	)

	if kafkaCfg.ConsumePayments {
		initPaymentsConsumer(cfg, kafkaCfg, serverApp, bookingService, bookingValidator)
	}

	pingers := cfg.Client.Pingers()
	if cfg.EventsBackend == config.BackendKafka || kafkaCfg.ConsumePayments {
		pingers = append(pingers, kafka.NewBrokerPinger(kafkaCfg.Brokers))
	}

	serverApp.SetApp(
		pingers,
		handler.NewBookingHandler(bookingService, bookingValidator, cfg.Log),
		handler.NewAvailabilityHandler(availability, cfg.Log),
	)
	serverApp.Run()
}

func initBookingRepository(cfg *config.Config) repository.BookingRepository {
	if cfg.StoreDriver == config.DriverMemory {
		cfg.Log.Warn("Using in-memory booking store, bookings are lost on restart")
		return repository.NewMemoryBookingRepository()
	}
	cfg.Log.Info("Booking store initialized", "driver", cfg.StoreDriver, "database", cfg.MongoDatabaseName)
	return repository.NewMongoBookingRepository(cfg)
}

// initCatalog opens the catalog the engine prices against. The in-memory
// catalog is filled from the seed file when one is configured.
func initCatalog(cfg *config.Config, refs catalogservice.BookingReferenceChecker) catalogservice.ResourceService {
	resourceValidator, err := catalogvalidator.NewResourceValidator()
	if err != nil {
		cfg.Log.Fatal("Failed to initialize resource validator", "error", err)
	}

	if cfg.CatalogDriver == config.DriverMySQL {
		return catalogservice.NewResourceService(catalogrepository.NewGormResourceRepository(cfg), resourceValidator, refs, cfg)
	}

	catalog := catalogservice.NewResourceService(catalogrepository.NewMemoryResourceRepository(), resourceValidator, refs, cfg)
	if cfg.CatalogSeedFile == "" {
		cfg.Log.Warn("In-memory catalog has no seed file, every booking request will miss its resource")
		return catalog
	}

	file, err := seed.Load(cfg.CatalogSeedFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalog seed", "error", err)
	}
	created, err := catalog.Seed(context.Background(), file.Resources, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to seed catalog", "error", err)
	}
	cfg.Log.Info("In-memory catalog seeded", "file", cfg.CatalogSeedFile, "resources", created)
	return catalog
}

func initLocker(cfg *config.Config) locker.Locker {
	switch cfg.LockBackend {
	case config.LockRedis:
		cfg.Log.Info("Resource locks held in Redis", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
		return locker.NewRedisLocker(cfg.Client.Redis, cfg.LockTTL)
	case config.LockMongo:
		cfg.Log.Info("Resource locks held in MongoDB", "ttl", cfg.LockTTL)
		return locker.NewMongoLocker(repository.NewBookingLockRepository(cfg), cfg.LockTTL)
	default:
		cfg.Log.Warn("Using process-local resource locks, run a single replica only")
		return locker.NewLocalLocker()
	}
}

func initPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, serverApp *app.Application) events.Publisher {
	switch cfg.EventsBackend {
	case config.BackendKafka:
		producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.BookingEventsTopic, kafkaCfg.BookingEventsDLQ, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		publisher := events.NewKafkaPublisher(producer)
		serverApp.AddCloser(publisher)
		cfg.Log.Info("Booking events published to Kafka", "topic", kafkaCfg.BookingEventsTopic, "source", eventsSource)
		return publisher

	case config.BackendRabbitMQ:
		rabbit, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create RabbitMQ publisher", "error", err)
		}
		if err := rabbit.Connect(); err != nil {
			cfg.Log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		publisher := events.NewRabbitMQPublisher(rabbit)
		serverApp.AddCloser(publisher)
		cfg.Log.Info("Booking events published to RabbitMQ", "queue", rabbit.Queue())
		return publisher

	default:
		cfg.Log.Info("Booking events disabled")
		return events.NewNopPublisher()
	}
}

func initPaymentsConsumer(
	cfg *config.Config,
	kafkaCfg *kafka_config.Config,
	serverApp *app.Application,
	bookings service.BookingService,
	bookingValidator *validator.BookingValidator,
) {
	payments := consumer.NewPaymentsHandler(bookings, bookingValidator, cfg.Log)
	paymentsConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.PaymentsTopic,
		kafkaCfg.PaymentsGroupID,
		kafkaCfg.PaymentsDLQ,
		payments.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create payments consumer", "error", err)
	}
	paymentsConsumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	serverApp.AddWorker(paymentsConsumer.Start)
	serverApp.AddCloser(paymentsConsumer)
	cfg.Log.Info("Payments consumer registered", "topic", kafkaCfg.PaymentsTopic, "group_id", kafkaCfg.PaymentsGroupID)
}
