package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"idle-market/config"
	"idle-market/internal/adapter/events"
	httpHandler "idle-market/internal/adapter/http/handler"
	memStorage "idle-market/internal/adapter/storage/memory"
	pgStorage "idle-market/internal/adapter/storage/postgres"
	redisStorage "idle-market/internal/adapter/storage/redis"
	"idle-market/internal/core/ports"
	"idle-market/internal/service"
	"idle-market/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// storage bundles the repositories of the selected backend.
type storage struct {
	accounts    ports.AccountRepository
	listings    ports.ListingRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      []ports.HealthChecker
	close       func()
}

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting Idle Market")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (IDM_JWT_SECRET)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	if n, err := service.SeedAccounts(ctx, store.accounts, cfg.Storage.SeedAccounts, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed accounts")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("Seed accounts created")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	listingCache := redisStorage.NewListingCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Event sinks
	var sinks []events.Sink
	var feed gin.HandlerFunc
	if cfg.Events.WebSocket.Enabled {
		hub := events.NewWSHub(cfg.Events.WebSocket.BufferSize, log)
		go hub.Run(ctx)
		sinks = append(sinks, events.Sink{Name: "websocket", Publisher: hub})
		feed = hub.Handle
		log.Info().Msg("WebSocket listing feed enabled")
	}
	if len(cfg.Events.Kafka.Brokers) > 0 {
		kafkaPub := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Events.Kafka))
		defer func() {
			if err := kafkaPub.Close(); err != nil {
				log.Warn().Err(err).Msg("closing kafka writer")
			}
		}()
		sinks = append(sinks, events.Sink{Name: "kafka", Publisher: kafkaPub})
		log.Info().Strs("brokers", cfg.Events.Kafka.Brokers).Str("topic", cfg.Events.Kafka.Topic).Msg("Kafka listing events enabled")
	}

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	catalog := service.NewStaticCatalog(cfg.Catalog.Food, cfg.Catalog.General)
	listingSvc := service.NewListingService(
		store.accounts,
		store.listings,
		store.idempotency,
		idempotencyCache,
		listingCache,
		events.NewFanout(sinks...),
		catalog,
		store.transactor,
		service.ListingSettings{
			Currencies:     cfg.Trade.Currencies,
			IdempotencyTTL: cfg.Trade.IdempotencyTTL,
		},
		log,
	)
	querySvc := service.NewMarketQueryService(
		store.accounts,
		store.listings,
		listingCache,
		service.QuerySettings{
			DefaultPageSize: cfg.Trade.DefaultPageSize,
			MaxPageSize:     cfg.Trade.MaxPageSize,
			ListingCacheTTL: cfg.Trade.ListingCacheTTL,
		},
		log,
	)
	auditSvc := service.NewAuditService(store.audit, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ListingSvc: listingSvc,
		QuerySvc:   querySvc,
		TokenSvc:   tokenSvc,
		Paging: httpHandler.Paging{
			DefaultPageSize: cfg.Trade.DefaultPageSize,
			MaxPageSize:     cfg.Trade.MaxPageSize,
		},
		RateLimitStore: rateLimitStore,
		RateLimits:     cfg.RateLimit,
		HealthCheckers: append(store.health, redisStorage.NewHealthCheck(rdb)),
		AuditSvc:       auditSvc,
		Feed:           feed,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// stops the feed hub and closes its connections
	cancel()

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn().Msg("Using in-memory storage, state is lost on exit")
		store := memStorage.NewStore()
		return &storage{
			accounts:    memStorage.NewAccountRepo(store),
			listings:    memStorage.NewListingRepo(store),
			idempotency: memStorage.NewIdempotencyRepo(store),
			audit:       memStorage.NewAuditRepo(store),
			transactor:  store,
			close:       func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := pgStorage.RunMigrations(cfg.Database, log); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("PostgreSQL connected")

	return &storage{
		accounts:    pgStorage.NewAccountRepo(pool),
		listings:    pgStorage.NewListingRepo(pool),
		idempotency: pgStorage.NewIdempotencyRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		transactor:  pgStorage.NewTransactor(pool, cfg.Database.LockTimeout, cfg.Database.StatementTimeout),
		health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:       pool.Close,
	}, nil
}
