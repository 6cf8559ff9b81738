package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proquint-registry/backend/internal/cache"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/config"
	"github.com/proquint-registry/backend/internal/db"
	"github.com/proquint-registry/backend/internal/events"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	registry, err := chain.Dial(ctx, cfg.EthRPCURL, cfg.ContractAddress, log)
	if err != nil {
		log.Fatal("failed to connect to eth rpc", zap.Error(err))
	}

	store := cache.NewRedisStore(rdb, "proquint:")
	publisher := events.NewRedisPublisher(rdb, log)
	commitmentService := services.NewCommitmentService(
		repositories.NewCommitmentRepo(pool),
		registry,
		chain.NewTxBuilder(cfg.ContractAddress),
		publisher,
		store,
		cfg.PendingCommitmentTTL,
		log,
	)
	indexer := services.NewIndexerService(
		registry,
		repositories.NewEventRepo(pool),
		commitmentService,
		store,
		publisher,
		cfg.IndexerStartBlock,
		cfg.IndexerBatchBlocks,
		log,
	)

	cursor, err := indexer.Cursor(ctx)
	if err != nil {
		log.Fatal("failed to load indexer cursor", zap.Error(err))
	}
	log.Info("indexer started",
		zap.String("contract", cfg.ContractAddress.Hex()),
		zap.Uint64("from_block", cursor),
		zap.Uint64("batch", cfg.IndexerBatchBlocks),
	)

	ticker := time.NewTicker(cfg.IndexerPoll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	poll(ctx, indexer, log)
	for {
		select {
		case <-ticker.C:
			poll(ctx, indexer, log)
		case <-sigCh:
			log.Info("shutting down indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func poll(ctx context.Context, indexer *services.IndexerService, log *zap.Logger) {
	start := time.Now()
	n, err := indexer.PollOnce(ctx)
	if err != nil {
		log.Error("poll cycle failed", zap.Int("indexed", n), zap.Error(err))
		return
	}
	if n > 0 {
		log.Debug("poll cycle", zap.Int("events", n), zap.Duration("took", time.Since(start)))
	}
}
