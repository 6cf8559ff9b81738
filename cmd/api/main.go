package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/cache"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/config"
	"github.com/proquint-registry/backend/internal/db"
	"github.com/proquint-registry/backend/internal/events"
	apphttp "github.com/proquint-registry/backend/internal/http"
	"github.com/proquint-registry/backend/internal/http/handlers"
	"github.com/proquint-registry/backend/internal/middleware"
	"github.com/proquint-registry/backend/internal/repositories"
	"github.com/proquint-registry/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConns)}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Chain
	registry, err := chain.Dial(ctx, cfg.EthRPCURL, cfg.ContractAddress, log)
	if err != nil {
		log.Fatal("failed to connect to eth rpc", zap.Error(err))
	}
	txBuilder := chain.NewTxBuilder(cfg.ContractAddress)

	// Repositories
	commitmentRepo := repositories.NewCommitmentRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	store := cache.NewRedisStore(rdb, "proquint:")
	nameService := services.NewNameService(registry, store, cfg.ChainCacheTTL, log)
	actionService := services.NewActionService(registry, txBuilder, log)
	commitmentService := services.NewCommitmentService(commitmentRepo, registry, txBuilder, publisher, store, cfg.PendingCommitmentTTL, log)
	// Read side only; cmd/indexer owns polling.
	eventService := services.NewIndexerService(registry, eventRepo, commitmentService, store, publisher, cfg.IndexerStartBlock, cfg.IndexerBatchBlocks, log)

	// Handlers
	metaHandler := handlers.NewMetaHandler(cfg)
	nameHandler := handlers.NewNameHandler(nameService, actionService, eventService, log)
	commitmentHandler := handlers.NewCommitmentHandler(commitmentService, log)
	wsHub := handlers.NewWSHub(subscriber, log)

	wsHub.Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, apphttp.RouterConfig{
		RateLimiter:        middleware.NewRedisCounter(rdb),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, log, metaHandler, nameHandler, commitmentHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("network", cfg.Network),
		zap.String("contract", cfg.ContractAddress.Hex()),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
