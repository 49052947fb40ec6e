package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Reminder   ReminderConfig   `mapstructure:"reminder"`
	Tracking   TrackingConfig   `mapstructure:"tracking"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPClientConfig holds outbound HTTP transport configuration.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig holds prometheus configuration.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// AuthConfig holds service token configuration for internal and admin routes.
type AuthConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	Issuer       string   `mapstructure:"issuer"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ProviderConfig holds payment provider configuration.
type ProviderConfig struct {
	Name            string        `mapstructure:"name"` // mercadopago, stripe
	BaseURL         string        `mapstructure:"base_url"`
	AccessToken     string        `mapstructure:"access_token"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	DedupHeader     string        `mapstructure:"dedup_header"`
	MaxSkew         time.Duration `mapstructure:"max_skew"` // signature timestamp tolerance, 0 disables
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

// QueueConfig holds job queue configuration.
type QueueConfig struct {
	Driver       string          `mapstructure:"driver"` // memory, redis
	Concurrency  int             `mapstructure:"concurrency"`
	MaxAttempts  int             `mapstructure:"max_attempts"`
	Backoff      []time.Duration `mapstructure:"backoff"`
	PollInterval time.Duration   `mapstructure:"poll_interval"`
	Lease        time.Duration   `mapstructure:"lease"`
	KeyPrefix    string          `mapstructure:"key_prefix"`
}

// DeliveryConfig holds outbound webhook delivery configuration.
type DeliveryConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResponseBytes int           `mapstructure:"max_response_bytes"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// ReminderConfig holds cart reminder configuration.
type ReminderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
}

// TrackingConfig holds purchase tracking configuration.
type TrackingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/digicheckout")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applySecretEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applySecretEnv overrides secrets from their dedicated environment variables.
func applySecretEnv(cfg *Config) {
	if password := os.Getenv("CHECKOUT_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("CHECKOUT_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if secret := os.Getenv("CHECKOUT_PROVIDER_WEBHOOK_SECRET"); secret != "" {
		cfg.Provider.WebhookSecret = secret
	}
	if token := os.Getenv("CHECKOUT_PROVIDER_ACCESS_TOKEN"); token != "" {
		cfg.Provider.AccessToken = token
	}
	if key := os.Getenv("CHECKOUT_STRIPE_SECRET_KEY"); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if secret := os.Getenv("CHECKOUT_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if token := os.Getenv("CHECKOUT_TRACKING_TOKEN"); token != "" {
		cfg.Tracking.Token = token
	}
}

// Validate checks settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.WebhookSecret == "" {
		errs = append(errs, errors.New("provider.webhook_secret is required"))
	}
	if c.Provider.MaxSkew < 0 {
		errs = append(errs, errors.New("provider.max_skew must not be negative"))
	}
	switch c.Provider.Name {
	case "mercadopago":
	case "stripe":
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("stripe.secret_key is required for the stripe provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider.Name))
	}

	switch c.Queue.Driver {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			errs = append(errs, errors.New("redis.address is required for the redis queue"))
		}
		if c.Queue.Lease > 0 && c.Queue.Lease < 3*c.Queue.PollInterval {
			errs = append(errs, errors.New("queue.lease must be at least three poll intervals"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue driver %q", c.Queue.Driver))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, errors.New("queue.concurrency must be at least 1"))
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, errors.New("queue.max_attempts must be at least 1"))
	}
	for i := 1; i < len(c.Queue.Backoff); i++ {
		if c.Queue.Backoff[i] <= c.Queue.Backoff[i-1] {
			errs = append(errs, errors.New("queue.backoff must be strictly increasing"))
			break
		}
	}

	if c.Tracking.Enabled && c.Tracking.Endpoint == "" {
		errs = append(errs, errors.New("tracking.endpoint is required when tracking is enabled"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "checkout")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 1*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	// Redis
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	// HTTP client
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 10)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 5*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 5*time.Second)
	v.SetDefault("http_client.response_timeout", 30*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics
	v.SetDefault("metrics.namespace", "checkout")
	v.SetDefault("metrics.path", "/metrics")

	// Auth
	v.SetDefault("auth.issuer", "digicheckout")
	v.SetDefault("auth.allow_origins", []string{})

	// Provider
	v.SetDefault("provider.name", "mercadopago")
	v.SetDefault("provider.base_url", "https://api.mercadopago.com")
	v.SetDefault("provider.dedup_header", "X-Idempotency-Key")
	v.SetDefault("provider.max_skew", 5*time.Minute)
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.breaker_failures", 5)
	v.SetDefault("provider.breaker_timeout", 30*time.Second)

	// Queue
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.backoff", []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second})
	v.SetDefault("queue.poll_interval", 1*time.Second)
	v.SetDefault("queue.lease", 1*time.Minute)
	v.SetDefault("queue.key_prefix", "checkout:queue")

	// Delivery
	v.SetDefault("delivery.timeout", 10*time.Second)
	v.SetDefault("delivery.max_response_bytes", 4096)
	v.SetDefault("delivery.user_agent", "digicheckout-webhooks/1.0")

	// Reminder
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.delay", 15*time.Minute)

	// Tracking
	v.SetDefault("tracking.enabled", false)
	v.SetDefault("tracking.timeout", 10*time.Second)
}
