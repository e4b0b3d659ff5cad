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

	"github.com/abhayc-main/next-starter/internal/auth"
	"github.com/abhayc-main/next-starter/internal/config"
	"github.com/abhayc-main/next-starter/internal/event"
	handler "github.com/abhayc-main/next-starter/internal/handler/http"
	"github.com/abhayc-main/next-starter/internal/oauth"
	"github.com/abhayc-main/next-starter/internal/repository"
	"github.com/abhayc-main/next-starter/internal/repository/postgres"
	"github.com/abhayc-main/next-starter/internal/service"
	"github.com/abhayc-main/next-starter/migrations"
	"github.com/abhayc-main/next-starter/pkg/database"
	"github.com/abhayc-main/next-starter/pkg/health"
	"github.com/abhayc-main/next-starter/pkg/httpclient"
	pkgkafka "github.com/abhayc-main/next-starter/pkg/kafka"
	"github.com/abhayc-main/next-starter/pkg/middleware"
	"github.com/abhayc-main/next-starter/pkg/tracing"
)

const serviceName = "accounts"

// App wires together all dependencies and runs the accounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Everything opened before a failed step is released again.
	var cleanup closers
	defer func() {
		if err != nil {
			cleanup.release()
		}
	}()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	cleanup.add(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = tracerShutdown(shutdownCtx)
	})

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	cleanup.add(pool.Close)
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	cleanup.add(func() { _ = producer.Close() })

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionMaxAge)
	accounts := repository.NewGuardedAccountRepository(
		postgres.NewAccountRepository(pool),
		repository.DefaultGuardConfig(cfg.StoreTimeout),
		logger,
	)
	claims := service.NewClaimsBuilder(accounts, logger)
	eventProducer := event.NewProducer(producer, logger)
	accountService := service.NewAccountService(accounts, hasher, jwtManager, claims, eventProducer, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", accounts.Ping)
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	var (
		rdb  *redis.Client
		flow handler.OAuthFlow
	)
	if cfg.GoogleEnabled() {
		rdb, flow, err = newOAuthFlow(ctx, cfg)
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { _ = rdb.Close() })
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("google sign-in enabled")
	}

	router := handler.NewRouter(accountService, jwtManager, jwtManager.Validator(), flow, healthHandler, logger, handler.RouterConfig{
		ServiceName: serviceName,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			ExposedHeaders:   []string{"X-Correlation-ID"},
			AllowCredentials: true,
			Environment:      cfg.Environment,
		},
		PostLoginRedirect: cfg.PostLoginRedirect,
		OAuthStateTTL:     cfg.OAuthStateTTL,
		SecureCookies:     cfg.SecureCookies,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          rdb,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newOAuthFlow connects to Redis for state storage and registers the Google
// provider.
func newOAuthFlow(ctx context.Context, cfg *config.Config) (*redis.Client, *oauth.Flow, error) {
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	google, err := oauth.NewGoogle(ctx, oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, httpclient.New(httpclient.DefaultConfig()))
	if err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("init google provider: %w", err)
	}

	providers := oauth.NewRegistry()
	if err := providers.Register(google); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return rdb, oauth.NewFlow(providers, oauth.NewStateStore(rdb, cfg.OAuthStateTTL)), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown drains HTTP requests first, then flushes spans, then closes the
// producer, Redis and the pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
