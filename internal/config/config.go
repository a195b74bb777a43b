package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Cart     CartConfig
	Checkout CheckoutConfig
	Catalog  CatalogConfig
	Kafka    KafkaConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	GRPCPort        int           `envconfig:"GRPC_PORT" default:"50051"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string  `envconfig:"APP_NAME" default:"storefront"`
	Environment string  `envconfig:"APP_ENV" default:"development"`
	LogLevel    string  `envconfig:"LOG_LEVEL" default:"info"`
	StoreType   string  `envconfig:"STORE_TYPE" default:"redis"` // redis or memory
	AdminIDs    []int64 `envconfig:"ADMIN_IDS" default:""`
}

// RedisConfig holds cart/session store settings. Retries reconnect on network errors.
type RedisConfig struct {
	Host            string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port            int           `envconfig:"REDIS_PORT" default:"6379"`
	Password        string        `envconfig:"REDIS_PASSWORD" default:""`
	DB              int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize        int           `envconfig:"REDIS_POOL_SIZE" default:"100"`
	MaxRetries      int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	MinRetryBackoff time.Duration `envconfig:"REDIS_MIN_RETRY_BACKOFF" default:"8ms"`
	MaxRetryBackoff time.Duration `envconfig:"REDIS_MAX_RETRY_BACKOFF" default:"512ms"`
	DialTimeout     time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

// DatabaseConfig holds MySQL settings for orders and users.
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"3306"`
	Name            string        `envconfig:"DB_NAME" default:"storefront"`
	User            string        `envconfig:"DB_USER" default:"root"`
	Password        string        `envconfig:"DB_PASS" default:"root"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	Migrate         bool          `envconfig:"DB_MIGRATE" default:"true"`

	BreakerMaxFailures uint32        `envconfig:"DB_BREAKER_MAX_FAILURES" default:"5"`
	BreakerTimeout     time.Duration `envconfig:"DB_BREAKER_TIMEOUT" default:"30s"`
}

type CartConfig struct {
	ItemCeiling int           `envconfig:"CART_ITEM_CEILING" default:"999"`
	TTL         time.Duration `envconfig:"CART_TTL" default:"24h"`
}

type CheckoutConfig struct {
	SessionTTL          time.Duration `envconfig:"CHECKOUT_SESSION_TTL" default:"30m"`
	LockTTL             time.Duration `envconfig:"CHECKOUT_LOCK_TTL" default:"10s"`
	OrdersPageSize      int           `envconfig:"ORDERS_PAGE_SIZE" default:"5"`
	AdminOrdersPageSize int           `envconfig:"ADMIN_ORDERS_PAGE_SIZE" default:"10"`
}

// CatalogConfig holds inventory source settings.
type CatalogConfig struct {
	Source         string        `envconfig:"CATALOG_SOURCE" default:"xlsx"` // xlsx, sqlite, postgres, or mongodb
	Path           string        `envconfig:"CATALOG_PATH" default:"./data/Stock.xlsx"`
	Sheet          string        `envconfig:"CATALOG_SHEET" default:""`
	SkipRows       int           `envconfig:"CATALOG_SKIP_ROWS" default:"6"`
	ReloadInterval time.Duration `envconfig:"CATALOG_RELOAD_INTERVAL" default:"10m"`
	LoadTimeout    time.Duration `envconfig:"CATALOG_LOAD_TIMEOUT" default:"30s"`
	Table          string        `envconfig:"CATALOG_TABLE" default:"products"`
	// PostgreSQL settings
	Host     string `envconfig:"CATALOG_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CATALOG_DB_PORT" default:"5432"`
	Name     string `envconfig:"CATALOG_DB_NAME" default:"storefront"`
	User     string `envconfig:"CATALOG_DB_USER" default:"postgres"`
	Password string `envconfig:"CATALOG_DB_PASS" default:""`
	SSLMode  string `envconfig:"CATALOG_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"storefront"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"products"`
}

// KafkaConfig is optional; without brokers events stay in process.
type KafkaConfig struct {
	Brokers                []string `envconfig:"KAFKA_BROKERS" default:""`
	CartChangedTopic       string   `envconfig:"KAFKA_CART_CHANGED_TOPIC" default:"cart-changed"`
	CheckoutCompletedTopic string   `envconfig:"KAFKA_CHECKOUT_COMPLETED_TOPIC" default:"checkout-completed"`
}

type NotifyConfig struct {
	Workers   int `envconfig:"NOTIFY_WORKERS" default:"4"`
	QueueSize int `envconfig:"NOTIFY_QUEUE_SIZE" default:"1000"`
}

// HTTPAddress returns the HTTP listen address in host:port format.
func (s *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

// GRPCAddress returns the gRPC listen address in host:port format.
func (s *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// PostgresDSN returns the PostgreSQL connection string for the catalog table.
func (c *CatalogConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsAdmin reports whether the user reviews orders.
func (a *AppConfig) IsAdmin(userID int64) bool {
	for _, id := range a.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.App.StoreType {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_TYPE %q", c.App.StoreType))
	}

	switch c.Catalog.Source {
	case "xlsx", "sqlite", "postgres", "mongodb":
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_SOURCE %q", c.Catalog.Source))
	}

	if c.Cart.ItemCeiling < 1 {
		errs = append(errs, errors.New("CART_ITEM_CEILING must be at least 1"))
	}
	if c.Cart.TTL <= 0 {
		errs = append(errs, errors.New("CART_TTL must be positive"))
	}
	if c.Checkout.SessionTTL <= 0 || c.Checkout.LockTTL <= 0 {
		errs = append(errs, errors.New("checkout TTLs must be positive"))
	}
	if c.Checkout.OrdersPageSize < 1 || c.Checkout.AdminOrdersPageSize < 1 {
		errs = append(errs, errors.New("page sizes must be at least 1"))
	}
	if c.Catalog.ReloadInterval <= 0 {
		errs = append(errs, errors.New("CATALOG_RELOAD_INTERVAL must be positive"))
	}
	if c.Catalog.SkipRows < 0 {
		errs = append(errs, errors.New("CATALOG_SKIP_ROWS must not be negative"))
	}
	if c.Notify.Workers < 1 || c.Notify.QueueSize < 1 {
		errs = append(errs, errors.New("notification workers and queue size must be at least 1"))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
