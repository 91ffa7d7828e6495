package config

const (
	EnvFile = "ENV_FILE"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvMySQLURL         = "MYSQL_URL"
	EnvMySQLHost        = "MYSQL_HOST"
	EnvMySQLPort        = "MYSQL_PORT"
	EnvMySQLUser        = "MYSQL_USER"
	EnvMySQLPassword    = "MYSQL_PASSWORD"
	EnvMySQLDatabase    = "MYSQL_DATABASE"
	EnvMySQLConnTimeout = "MYSQL_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvRabbitMQURL   = "RABBITMQ_URL"
	EnvRabbitMQQueue = "RABBITMQ_QUEUE"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvStoreDriver   = "STORE_DRIVER"
	EnvCatalogDriver = "CATALOG_DRIVER"
	EnvEventsBackend = "EVENTS_BACKEND"
	EnvLockBackend   = "LOCK_BACKEND"

	EnvAutoConfirm                 = "AUTO_CONFIRM"
	EnvRequirePaymentBeforeConfirm = "REQUIRE_PAYMENT_BEFORE_CONFIRM"
	EnvLockTimeout                 = "LOCK_TIMEOUT"
	EnvLockTTL                     = "LOCK_TTL"
	EnvOperatingHoursOpen          = "OPERATING_HOURS_OPEN"
	EnvOperatingHoursClose         = "OPERATING_HOURS_CLOSE"
	EnvSiteTimezone                = "SITE_TIMEZONE"
	EnvPricingTieBreak             = "PRICING_TIE_BREAK"
	EnvCurrency                    = "CURRENCY"
	EnvCatalogSeedFile             = "CATALOG_SEED_FILE"
)
