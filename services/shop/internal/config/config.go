package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	pkgconfig "github.com/gamehub/shop/pkg/config"
	"github.com/gamehub/shop/pkg/database"
	"github.com/gamehub/shop/pkg/httpclient"
)

// Gateway providers accepted by GATEWAY_PROVIDER.
const (
	ProviderMock   = "mock"
	ProviderStripe = "stripe"
)

// devJWTSecret is only ever used when ENVIRONMENT=development and no
// JWT_SECRET is set.
const devJWTSecret = "gamehub-development-secret"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Config holds all configuration for the shop service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SHOP_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"gamehub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"gamehub"`
	PostgresDB   string `env:"SHOP_DB_NAME" envDefault:"gamehub_shop"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (session bags)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Session cookie
	SessionTTLMinutes   int    `env:"SESSION_TTL_MINUTES" envDefault:"120"`
	SessionCookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"gamehub_session"`
	SessionCookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Auth and storefront
	JWTSecret     string `env:"JWT_SECRET" envDefault:""`
	ShopCurrency  string `env:"SHOP_CURRENCY" envDefault:"CAD"`
	ShopPublicURL string `env:"SHOP_PUBLIC_URL" envDefault:"http://localhost:8080"`

	// Browser storefront
	CORSAllowedOrigins        []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	CatalogCacheMaxAgeSeconds int      `env:"CATALOG_CACHE_MAX_AGE_SECONDS" envDefault:"60"`

	// Payment gateway
	GatewayProvider       string `env:"GATEWAY_PROVIDER" envDefault:"mock"`
	StripeSecretKey       string `env:"STRIPE_SECRET_KEY" envDefault:""`
	StripeAPIURL          string `env:"STRIPE_API_URL" envDefault:"https://api.stripe.com"`
	GatewayTimeoutSeconds int    `env:"GATEWAY_TIMEOUT_SECONDS" envDefault:"15"`
	GatewayMaxRetries     int    `env:"GATEWAY_MAX_RETRIES" envDefault:"0"`

	// Circuit breaker around the gateway
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Checkout rate limit, per client IP
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"2"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"10"`

	// Kafka and outbox relay
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	OutboxPollIntervalMs int      `env:"OUTBOX_POLL_INTERVAL_MS" envDefault:"1000"`
	OutboxBatchSize      int      `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load shop config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// validate checks configuration invariants and normalises a few values.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", c.SessionTTLMinutes)
	}

	c.ShopCurrency = strings.ToUpper(strings.TrimSpace(c.ShopCurrency))
	if !currencyCode.MatchString(c.ShopCurrency) {
		return fmt.Errorf("SHOP_CURRENCY must be a 3-letter ISO 4217 code, got %q", c.ShopCurrency)
	}

	u, err := url.Parse(c.ShopPublicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid SHOP_PUBLIC_URL %q", c.ShopPublicURL)
	}
	c.ShopPublicURL = strings.TrimRight(c.ShopPublicURL, "/")

	switch c.GatewayProvider {
	case ProviderMock:
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when GATEWAY_PROVIDER=stripe")
		}
		if _, err := url.ParseRequestURI(c.StripeAPIURL); err != nil {
			return fmt.Errorf("invalid STRIPE_API_URL %q: %w", c.StripeAPIURL, err)
		}
	default:
		return fmt.Errorf("unknown GATEWAY_PROVIDER %q", c.GatewayProvider)
	}
	if c.GatewayTimeoutSeconds < 1 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive, got %d", c.GatewayTimeoutSeconds)
	}
	if c.GatewayMaxRetries < 0 {
		return fmt.Errorf("GATEWAY_MAX_RETRIES must not be negative, got %d", c.GatewayMaxRetries)
	}

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.JWTSecret = devJWTSecret
	}

	if c.CatalogCacheMaxAgeSeconds < 0 {
		return fmt.Errorf("CATALOG_CACHE_MAX_AGE_SECONDS must not be negative, got %d", c.CatalogCacheMaxAgeSeconds)
	}
	if c.CheckoutRateLimitRPS <= 0 || c.CheckoutRateLimitBurst < 1 {
		return fmt.Errorf("checkout rate limit must be positive, got %v rps burst %d",
			c.CheckoutRateLimitRPS, c.CheckoutRateLimitBurst)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OutboxPollIntervalMs < 10 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL_MS must be at least 10, got %d", c.OutboxPollIntervalMs)
	}
	if c.OutboxBatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the pool settings for database.NewPostgresPool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the session store connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMs) * time.Millisecond
}

// GatewayHTTP returns the HTTP client settings for the payment gateway.
func (c *Config) GatewayHTTP() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = time.Duration(c.GatewayTimeoutSeconds) * time.Second
	hc.MaxRetries = c.GatewayMaxRetries
	return hc
}

// GatewayBreaker returns the circuit breaker settings for the payment gateway.
func (c *Config) GatewayBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "payment-gateway",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
