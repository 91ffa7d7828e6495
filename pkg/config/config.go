package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"cowork/pkg/client"
	"cowork/pkg/logger"
	"cowork/pkg/model"
	"cowork/pkg/pricing"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	MySQLURL         string
	MySQLHost        string
	MySQLPort        string
	MySQLUser        string
	MySQLPassword    string
	MySQLDatabase    string
	MySQLConnTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL   string
	RabbitMQQueue string

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StoreDriver   string
	CatalogDriver string
	EventsBackend string
	LockBackend   string

	AutoConfirm                 bool
	RequirePaymentBeforeConfirm bool
	LockTimeout                 time.Duration
	LockTTL                     time.Duration
	OperatingHoursOpen          string
	OperatingHoursClose         string
	SiteTimezone                string
	PricingTieBreak             string
	Currency                    string
	CatalogSeedFile             string

	// Resolved by Validate.
	OperatingHours model.OperatingHours
	TieBreak       pricing.TieBreak

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment (optionally seeded from a .env file), validates
// it and exits the process on invalid configuration.
func Load(serviceName string) *Config {
	cfg, err := New(serviceName)
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// New builds and validates a Config. The returned Config always carries a usable logger.
func New(serviceName string) (*Config, error) {
	envErr := loadEnvFile(os.Getenv(EnvFile))

	cfg := &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		MySQLURL:         getEnvStr(EnvMySQLURL, ""),
		MySQLHost:        getEnvStr(EnvMySQLHost, DefaultMySQLHost),
		MySQLPort:        getEnvStr(EnvMySQLPort, DefaultMySQLPort),
		MySQLUser:        getEnvStr(EnvMySQLUser, DefaultMySQLUser),
		MySQLPassword:    getEnvStr(EnvMySQLPassword, ""),
		MySQLDatabase:    getEnvStr(EnvMySQLDatabase, DefaultMySQLDatabase),
		MySQLConnTimeout: getEnvDuration(EnvMySQLConnTimeout, DefaultMySQLConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, 0),

		RabbitMQURL:   getEnvStr(EnvRabbitMQURL, DefaultRabbitMQURL),
		RabbitMQQueue: getEnvStr(EnvRabbitMQQueue, DefaultRabbitMQQueue),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		StoreDriver:   strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),
		CatalogDriver: strings.ToLower(getEnvStr(EnvCatalogDriver, DefaultCatalogDriver)),
		EventsBackend: strings.ToLower(getEnvStr(EnvEventsBackend, DefaultEventsBackend)),
		LockBackend:   strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),

		AutoConfirm:                 getEnvBool(EnvAutoConfirm, false),
		RequirePaymentBeforeConfirm: getEnvBool(EnvRequirePaymentBeforeConfirm, false),
		LockTimeout:                 getEnvDuration(EnvLockTimeout, DefaultLockTimeout),
		LockTTL:                     getEnvDuration(EnvLockTTL, DefaultLockTTL),
		OperatingHoursOpen:          getEnvStr(EnvOperatingHoursOpen, DefaultOperatingHoursOpen),
		OperatingHoursClose:         getEnvStr(EnvOperatingHoursClose, DefaultOperatingHoursClose),
		SiteTimezone:                getEnvStr(EnvSiteTimezone, DefaultSiteTimezone),
		PricingTieBreak:             strings.ToLower(getEnvStr(EnvPricingTieBreak, DefaultPricingTieBreak)),
		Currency:                    strings.ToUpper(getEnvStr(EnvCurrency, DefaultCurrency)),
		CatalogSeedFile:             getEnvStr(EnvCatalogSeedFile, ""),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if envErr != nil {
		return cfg, envErr
	}
	return cfg, cfg.Validate()
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetMySQL() {
	cfg.Client.SetMySQL(cfg.Log, cfg.MySQLDSN(), cfg.MySQLConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// SetStores connects only the backends the selected drivers need.
func (cfg *Config) SetStores() {
	if cfg.StoreDriver == DriverMongo || cfg.LockBackend == LockMongo {
		cfg.SetMongo()
	}
	if cfg.CatalogDriver == DriverMySQL {
		cfg.SetMySQL()
	}
	if cfg.LockBackend == LockRedis {
		cfg.SetRedis()
	}
}

// MySQLDSN resolves the go-sql-driver DSN from MYSQL_URL (mysql:// or raw DSN) or its parts.
func (cfg *Config) MySQLDSN() string {
	if cfg.MySQLURL != "" {
		if strings.HasPrefix(cfg.MySQLURL, "mysql://") {
			if dsn, err := mysqlDSNFromURL(cfg.MySQLURL); err == nil {
				return dsn
			}
		}
		return cfg.MySQLURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDatabase,
	)
}

func mysqlDSNFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	port := u.Port()
	if port == "" {
		port = DefaultMySQLPort
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "UTC")
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, u.Hostname(), port, dbName, q.Encode()), nil
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if !slices.Contains([]string{DriverMongo, DriverMemory}, cfg.StoreDriver) {
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of mongo|memory, got: %s", cfg.StoreDriver))
	}
	if !slices.Contains([]string{DriverMySQL, DriverMemory}, cfg.CatalogDriver) {
		errors = append(errors, fmt.Sprintf("CatalogDriver must be one of mysql|memory, got: %s", cfg.CatalogDriver))
	}
	if !slices.Contains([]string{BackendKafka, BackendRabbitMQ, BackendNone}, cfg.EventsBackend) {
		errors = append(errors, fmt.Sprintf("EventsBackend must be one of kafka|rabbitmq|none, got: %s", cfg.EventsBackend))
	}
	if !slices.Contains([]string{LockLocal, LockMongo, LockRedis}, cfg.LockBackend) {
		errors = append(errors, fmt.Sprintf("LockBackend must be one of local|mongo|redis, got: %s", cfg.LockBackend))
	}

	if cfg.StoreDriver == DriverMongo || cfg.LockBackend == LockMongo {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}

	if cfg.CatalogDriver == DriverMySQL && cfg.MySQLURL == "" && cfg.MySQLDatabase == "" {
		errors = append(errors, "MySQLDatabase cannot be empty when MYSQL_URL is not set")
	}
	if cfg.LockBackend == LockRedis && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when LockBackend is redis")
	}
	if cfg.EventsBackend == BackendRabbitMQ && cfg.RabbitMQURL == "" {
		errors = append(errors, "RabbitMQURL cannot be empty when EventsBackend is rabbitmq")
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.LockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockTimeout must be positive, got: %s", cfg.LockTimeout))
	}
	if cfg.LockTTL < cfg.LockTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL (%s) must be >= LockTimeout (%s)", cfg.LockTTL, cfg.LockTimeout))
	}

	hours, err := model.ParseOperatingHours(cfg.OperatingHoursOpen, cfg.OperatingHoursClose, cfg.SiteTimezone)
	if err != nil {
		errors = append(errors, fmt.Sprintf("Operating hours are invalid: %v", err))
	} else {
		cfg.OperatingHours = hours
	}

	tieBreak, err := pricing.ParseTieBreak(cfg.PricingTieBreak)
	if err != nil {
		errors = append(errors, err.Error())
	} else {
		cfg.TieBreak = tieBreak
	}

	if !regexp.MustCompile(`^[A-Z]{3}$`).MatchString(cfg.Currency) {
		errors = append(errors, fmt.Sprintf("Currency must be an ISO 4217 code, got: %s", cfg.Currency))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"catalog_driver", cfg.CatalogDriver,
		"events_backend", cfg.EventsBackend,
		"lock_backend", cfg.LockBackend,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mysql_dsn", redactDSN(cfg.MySQLDSN()),
		"redis_addr", cfg.RedisAddr,
		"rabbitmq_url", redactURI(cfg.RabbitMQURL),
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"auto_confirm", cfg.AutoConfirm,
		"require_payment_before_confirm", cfg.RequirePaymentBeforeConfirm,
		"lock_timeout", cfg.LockTimeout,
		"lock_ttl", cfg.LockTTL,
		"operating_hours", cfg.OperatingHours.String(),
		"site_timezone", cfg.SiteTimezone,
		"pricing_tie_break", cfg.TieBreak,
		"currency", cfg.Currency,
		"catalog_seed_file", cfg.CatalogSeedFile,
	)
}

func redactURI(uri string) string {
	credentialRegex := regexp.MustCompile(`([a-z+]+://)[^:/@]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactDSN(dsn string) string {
	credentialRegex := regexp.MustCompile(`^[^:@/]+:[^@]*@`)
	return credentialRegex.ReplaceAllString(dsn, "***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
