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

	commitmentService := services.NewCommitmentService(
		repositories.NewCommitmentRepo(pool),
		registry,
		chain.NewTxBuilder(cfg.ContractAddress),
		events.NewRedisPublisher(rdb, log),
		cache.NewRedisStore(rdb, "proquint:"),
		cfg.PendingCommitmentTTL,
		log,
	)

	log.Info("worker started",
		zap.Duration("sweep", cfg.WorkerSweep),
		zap.Duration("pending_ttl", cfg.PendingCommitmentTTL),
	)

	sweepTicker := time.NewTicker(cfg.WorkerSweep)
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runSweep(ctx, commitmentService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSweep announces commitments that became revealable and expires the
// ones that aged out.
func runSweep(ctx context.Context, svc *services.CommitmentService, log *zap.Logger) {
	res, err := svc.SweepExpired(ctx)
	if err != nil {
		log.Error("commitment sweep failed", zap.Error(err))
		return
	}
	if res.Ready > 0 || res.Expired > 0 || res.PendingExpired > 0 {
		log.Info("commitment sweep",
			zap.Int("ready", res.Ready),
			zap.Int("expired", res.Expired),
			zap.Int("pending_expired", res.PendingExpired),
		)
	}
}
