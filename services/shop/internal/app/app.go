package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/gamehub/shop/pkg/database"
	"github.com/gamehub/shop/pkg/health"
	"github.com/gamehub/shop/pkg/httpclient"
	pkgkafka "github.com/gamehub/shop/pkg/kafka"
	"github.com/gamehub/shop/pkg/middleware"
	"github.com/gamehub/shop/pkg/tracing"
	"github.com/gamehub/shop/services/shop/internal/auth"
	"github.com/gamehub/shop/services/shop/internal/config"
	"github.com/gamehub/shop/services/shop/internal/event"
	"github.com/gamehub/shop/services/shop/internal/gateway"
	mockgw "github.com/gamehub/shop/services/shop/internal/gateway/mock"
	"github.com/gamehub/shop/services/shop/internal/gateway/stripe"
	handler "github.com/gamehub/shop/services/shop/internal/handler/http"
	"github.com/gamehub/shop/services/shop/internal/repository/postgres"
	"github.com/gamehub/shop/services/shop/internal/service"
	"github.com/gamehub/shop/services/shop/internal/session"
	"github.com/gamehub/shop/services/shop/migrations"
)

const serviceName = "shop"

// App wires together all dependencies and runs the shop service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	relay          *event.OutboxRelay
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

	// Initialize PostgreSQL and apply the schema.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Initialize Redis for session bags.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Initialize Kafka producer for the outbox relay.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Payment gateway.
	gw, mockGateway := newGateway(cfg, logger)
	logger.Info("payment gateway configured", slog.String("provider", gw.Name()))

	// Build the dependency graph.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)

	cartService := service.NewCartService(cartRepo, productRepo, cfg.ShopCurrency, logger)
	checkoutService := service.NewCheckoutService(cartService, cartRepo, orderRepo, gw, service.CheckoutConfig{
		Currency:  cfg.ShopCurrency,
		PublicURL: cfg.ShopPublicURL,
	}, logger)
	catalogService := service.NewCatalogService(productRepo, logger)

	relay := event.NewOutboxRelay(outboxRepo, producer, cfg.OutboxPollInterval(), cfg.OutboxBatchSize, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterOptional("kafka", producer.Ping)

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(handler.Deps{
		Cart:        cartService,
		Checkout:    checkoutService,
		Catalog:     catalogService,
		Sessions:    session.NewStore(rdb, cfg.SessionTTL()),
		Tokens:      auth.NewJWTManager(cfg.JWTSecret, time.Hour).Validator(),
		Health:      healthHandler,
		MockGateway: mockGateway,
	}, handler.RouterConfig{
		Cookie: session.CookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
		},
		CORS:               cors,
		PprofCIDRs:         cfg.PprofAllowedCIDRs,
		CheckoutRateRPS:    cfg.CheckoutRateLimitRPS,
		CheckoutRateBurst:  cfg.CheckoutRateLimitBurst,
		CatalogCacheMaxAge: cfg.CatalogCacheMaxAgeSeconds,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The payment redirect waits on the gateway.
		WriteTimeout: time.Duration(cfg.GatewayTimeoutSeconds)*time.Second + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		relay:          relay,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newGateway builds the configured payment gateway. The mock gateway is
// also returned so its hosted page can be mounted.
func newGateway(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, *mockgw.Gateway) {
	if cfg.GatewayProvider == config.ProviderMock {
		gw := mockgw.New(cfg.ShopPublicURL)
		return gw, gw
	}
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(cfg.GatewayHTTP()), cfg.GatewayBreaker(), logger)
	return stripe.NewClient(doer, cfg.StripeAPIURL, cfg.StripeSecretKey, logger), nil
}

// Run starts the HTTP server and the outbox relay and blocks until the
// context is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.relay.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}

		// Graceful HTTP server shutdown with a 10-second deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close releases the clients once the server and the relay have stopped.
func (a *App) Close() {
	a.logger.Info("shutting down application...")

	// Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	// Close Redis client.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
}
