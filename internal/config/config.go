// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for all major components including
// server settings, storage tiers, caches, portals, and operational parameters.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration (e.g., HTTP server, storage
// tiers, notification queue) and is validated during application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Storage     StorageConfig
	Merchant    MerchantConfig
	Payment     PaymentConfig
	Portal      PortalConfig
	Notifier    NotifierConfig
	RateLimit   RateLimitConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains settings for the secondary (backup) relational store
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
}

// MongoDBConfig contains settings for the primary document store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains settings for the cache store used by the merchant
// resolution cache (outage tier) and the expiry monitoring index
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// KafkaConfig contains settings for the settlement event stream
type KafkaConfig struct {
	Brokers           string
	SettlementTopic   string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	MaxWait           time.Duration
	DLQTopic          string // Topic for settlement events that failed to publish
}

// StorageConfig controls the storage resolver's health probing
type StorageConfig struct {
	ProbeInterval time.Duration // How often tier health is re-checked
	ProbeTimeout  time.Duration // Per-probe deadline
}

// MerchantConfig controls the merchant resolution cache tiers
type MerchantConfig struct {
	LocalCacheTTL    time.Duration // In-process cache entry lifetime
	LocalCacheSize   int           // Bounded LRU capacity
	RedisCacheTTL    time.Duration // Outage-tier cache entry lifetime
	RedisKeyPrefix   string
	StaticConfigPath string // Emergency merchant list (keyed by API key hash)
}

// PaymentConfig controls order lifecycle parameters
type PaymentConfig struct {
	WindowSeconds      int           // Deposit payment window
	ExpiryScanInterval time.Duration // Periodic expiry scan cadence
	ExpiryScanBatch    int           // Orders examined per scan
}

// PortalEndpoint describes one external bank/payment portal API
type PortalEndpoint struct {
	BaseURL string
	APIKey  string
}

// PortalConfig contains the external validation channel endpoints
type PortalConfig struct {
	HTTPTimeout time.Duration
	Sepay       PortalEndpoint
	Casso       PortalEndpoint
}

// NotifierConfig controls the merchant callback retry queue
type NotifierConfig struct {
	Capacity   int           // Bounded queue size; oldest pending evicted when full
	BaseDelay  time.Duration // Backoff base (base * 2^retryCount)
	MaxRetries int
	PoolSize   int // Delivery worker pool size
	Timeout    time.Duration
}

// RateLimitConfig controls the bulk order-creation limiter
type RateLimitConfig struct {
	BulkPerWindow int           // Bulk submissions allowed per window per merchant
	Window        time.Duration // Sliding window length
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.Redis.Timeout <= 0 {
		validationErrors = append(validationErrors, "REDIS_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.SettlementTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_SETTLEMENT_TOPIC is required")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_MAX_WAIT must be greater than 0")
	}

	// Validate Storage config
	if c.Storage.ProbeInterval <= 0 {
		validationErrors = append(validationErrors, "STORAGE_PROBE_INTERVAL must be greater than 0")
	}
	if c.Storage.ProbeTimeout <= 0 {
		validationErrors = append(validationErrors, "STORAGE_PROBE_TIMEOUT must be greater than 0")
	}

	// Validate Merchant cache config
	if c.Merchant.LocalCacheTTL <= 0 {
		validationErrors = append(validationErrors, "MERCHANT_LOCAL_CACHE_TTL must be greater than 0")
	}
	if c.Merchant.LocalCacheSize <= 0 {
		validationErrors = append(validationErrors, "MERCHANT_LOCAL_CACHE_SIZE must be greater than 0")
	}
	if c.Merchant.RedisCacheTTL <= 0 {
		validationErrors = append(validationErrors, "MERCHANT_REDIS_CACHE_TTL must be greater than 0")
	}

	// Validate Payment config
	if c.Payment.WindowSeconds <= 0 {
		validationErrors = append(validationErrors, "PAYMENT_WINDOW_SECONDS must be greater than 0")
	}
	if c.Payment.ExpiryScanInterval <= 0 {
		validationErrors = append(validationErrors, "PAYMENT_EXPIRY_SCAN_INTERVAL must be greater than 0")
	}
	if c.Payment.ExpiryScanBatch <= 0 {
		validationErrors = append(validationErrors, "PAYMENT_EXPIRY_SCAN_BATCH must be greater than 0")
	}

	// Validate Portal config
	if c.Portal.HTTPTimeout <= 0 {
		validationErrors = append(validationErrors, "PORTAL_HTTP_TIMEOUT must be greater than 0")
	}

	// Validate Notifier config
	if c.Notifier.Capacity <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_CAPACITY must be greater than 0")
	}
	if c.Notifier.BaseDelay <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_BASE_DELAY must be greater than 0")
	}
	if c.Notifier.MaxRetries <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_MAX_RETRIES must be greater than 0")
	}
	if c.Notifier.PoolSize <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_POOL_SIZE must be greater than 0")
	}
	if c.Notifier.Timeout <= 0 {
		validationErrors = append(validationErrors, "NOTIFIER_TIMEOUT must be greater than 0")
	}

	// Validate RateLimit config
	if c.RateLimit.BulkPerWindow <= 0 {
		validationErrors = append(validationErrors, "RATELIMIT_BULK_PER_WINDOW must be greater than 0")
	}
	if c.RateLimit.Window <= 0 {
		validationErrors = append(validationErrors, "RATELIMIT_WINDOW must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
