package client

import (
	"context"
	"log/slog"
	"time"

	"cowork/pkg/contracts"
	"cowork/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 5 * time.Second

// Client holds the shared backend connections of a service. Only the
// connections a service actually selects are set.
type Client struct {
	Mongo *mongo.Client
	MySQL *gorm.DB
	Redis *redis.Client
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetMySQL(log *logger.Logger, dsn string, connTimeout time.Duration) {
	gormLog := gormlogger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		log.Fatal("Failed to connect to MySQL", "error", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to obtain MySQL connection pool", "error", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping MySQL", "error", err)
	}

	log.Info("Successfully connected to MySQL")
	c.MySQL = db
}

func (c *Client) SetRedis(log *logger.Logger, addr, password string, db int) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis", "error", err, "addr", addr)
	}

	log.Info("Successfully connected to Redis", "addr", addr)
	c.Redis = client
}

// GracefulShutdown closes every connection that was opened.
func (c *Client) GracefulShutdown(log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect MongoDB", "error", err)
		}
	}
	if c.MySQL != nil {
		if sqlDB, err := c.MySQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Error("Failed to close MySQL pool", "error", err)
			}
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		}
	}
	log.Info("Backend connections closed")
}

type pinger struct {
	name string
	ping func(ctx context.Context) error
}

func (p pinger) Name() string { return p.name }
func (p pinger) Ping(ctx context.Context) error { return p.ping(ctx) }

// Pingers returns a readiness probe for every open connection.
func (c *Client) Pingers() []contracts.Pinger {
	var pingers []contracts.Pinger
	if c.Mongo != nil {
		pingers = append(pingers, pinger{name: "mongo", ping: func(ctx context.Context) error {
			return c.Mongo.Ping(ctx, nil)
		}})
	}
	if c.MySQL != nil {
		pingers = append(pingers, pinger{name: "mysql", ping: func(ctx context.Context) error {
			sqlDB, err := c.MySQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if c.Redis != nil {
		pingers = append(pingers, pinger{name: "redis", ping: func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}})
	}
	return pingers
}
