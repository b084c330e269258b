// Package main is the entrypoint for the Colloil API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/colloil/colloil/internal/auth"
	"github.com/colloil/colloil/internal/cache"
	"github.com/colloil/colloil/internal/catalog"
	"github.com/colloil/colloil/internal/config"
	"github.com/colloil/colloil/internal/events"
	"github.com/colloil/colloil/internal/handler"
	"github.com/colloil/colloil/internal/metrics"
	"github.com/colloil/colloil/internal/middleware"
	"github.com/colloil/colloil/internal/repository"
	"github.com/colloil/colloil/internal/repository/sqlite"
	"github.com/colloil/colloil/internal/server"
	"github.com/colloil/colloil/internal/service"
	"github.com/colloil/colloil/migrations"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize storage
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("driver", cfg.StorageDriver),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("store ready", "driver", cfg.StorageDriver)

	// Initialize cache (optional)
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; auth cache, stats cache and rate limiting are disabled")
	}

	recorder := metrics.NewInMemory()

	// Initialize event sink
	sink, err := openEventSink(ctx, cfg, cacheClient)
	if err != nil {
		logger.Error("failed to open event sink",
			slog.String("sink", cfg.EventsSink),
			slog.String("error", err.Error()),
		)
		_ = cacheClient.Close()
		_ = store.Close()
		os.Exit(1)
	}
	publisher := events.NewPublisher(sink, logger, recorder)

	cat, err := catalog.Load()
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}

	// Initialize services
	accountService := service.NewAccountService(store, cat, tokens, cacheClient, publisher, recorder, logger, cfg.StorageTimeout)
	ledgerService := service.NewLedgerService(store, cat, cacheClient, publisher, recorder, logger, cfg.StorageTimeout)
	ledgerService.SetMaxLitersPerRequest(cfg.MaxLitersPerRequest)
	activityService := service.NewActivityService(store, cfg.StorageTimeout)
	infoService := service.NewInfoService(store, cat, cacheClient, logger, cfg.StorageTimeout)

	// Initialize handlers
	var cacheCheck handler.HealthChecker
	if cacheClient.Enabled() {
		cacheCheck = cacheClient
	}
	handlers := routeHandlers{
		root:     handler.New(),
		health:   handler.NewHealthHandler(cfg.StorageDriver, store, cacheCheck),
		metrics:  handler.NewMetricsHandler(recorder),
		accounts: handler.NewAccountHandler(accountService, logger),
		ledger:   handler.NewLedgerHandler(ledgerService, activityService, logger),
		info:     handler.NewInfoHandler(infoService, logger),
	}

	r := setupRouter(handlers, accountService, tokens, cacheClient, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Closed in reverse order: publisher, then cache, then store.
	srv.OnShutdown("store", func(context.Context) error { return store.Close() })
	srv.OnShutdown("cache", func(context.Context) error { return cacheClient.Close() })
	srv.OnShutdown("events", func(context.Context) error { return publisher.Close() })

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage", cfg.StorageDriver,
		"events_sink", cfg.EventsSink,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects the configured storage driver and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := repo.RunMigrations(ctx, migrations.FS, logger); err != nil {
				_ = repo.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// openEventSink builds the ledger event sink named by EVENTS_SINK.
func openEventSink(ctx context.Context, cfg *config.Config, cacheClient *cache.Cache) (events.Sink, error) {
	switch cfg.EventsSink {
	case config.SinkRedis:
		if !cacheClient.Enabled() {
			return nil, fmt.Errorf("redis event sink requires REDIS_URL")
		}
		return events.NewRedisStreamSink(cacheClient.Client()), nil
	case config.SinkKafka:
		sink, err := events.NewKafkaSink(cfg.GetKafkaBrokers(), cfg.KafkaClientID, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureTopic(ctx, cfg.KafkaPartitions, cfg.KafkaReplication); err != nil {
			_ = sink.Close()
			return nil, fmt.Errorf("ensure topic %s: %w", cfg.KafkaTopic, err)
		}
		return sink, nil
	default:
		return events.NoopSink{}, nil
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "colloil-api")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routeHandlers struct {
	root     *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	accounts *handler.AccountHandler
	ledger   *handler.LedgerHandler
	info     *handler.InfoHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routeHandlers,
	users middleware.UserChecker,
	tokens middleware.TokenVerifier,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()
	if cfg.MaxRequestBodySize > 0 {
		securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize
	}
	securityCfg.CacheablePaths = []string{
		"/api/collection-points",
		"/api/info/about",
		"/api/info/biodiesel",
		"/api/info/glycerin",
	}
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.MaxBodySize(securityCfg.MaxRequestBodySize))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.GetCORSAllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Probes and metrics (no auth required)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	authCfg := middleware.AuthConfig{
		Logger: logger,
		Tokens: tokens,
		Users:  users,
		Cache:  cacheClient,
	}

	authRateLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:  logger,
		Cache:   cacheClient,
		Enabled: cfg.RateLimitAuthEnabled,
		Scope:   "auth",
		RPS:     cfg.RateLimitAuthRPS,
		Burst:   cfg.RateLimitAuthBurst,
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.root.Root)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/register", h.accounts.Register)
			r.Post("/login", h.accounts.Login)
		})

		// Public catalog content
		r.Get("/collection-points", h.info.CollectionPoints)
		r.Get("/info/about", h.info.Page(catalog.PageAbout))
		r.Get("/info/biodiesel", h.info.Page(catalog.PageBiodiesel))
		r.Get("/info/glycerin", h.info.Page(catalog.PageGlycerin))
		r.Get("/info/community", h.info.Community)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))

			r.Get("/user/profile", h.accounts.GetProfile)
			r.Put("/user/profile", h.accounts.UpdateProfile)

			r.Post("/courier/request", h.ledger.RequestCourier)
			r.Get("/courier/history", h.ledger.CourierHistory)

			r.Get("/coupons", h.ledger.ListCoupons)
			r.Post("/coupons/{id}/activate", h.ledger.ActivateCoupon)

			r.Get("/notifications", h.ledger.ListNotifications)
			r.Put("/notifications/{id}/read", h.ledger.MarkNotificationRead)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.root.NotFound)
	r.MethodNotAllowed(h.root.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
