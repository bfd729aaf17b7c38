package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/db"
	"github.com/tewo-market/gateway/internal/events"
	"github.com/tewo-market/gateway/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IndexerRPCURL == "" {
		log.Fatal("INDEXER_RPC_URL or WALLET_RPC_URL is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		log.Fatal("invalid CONTRACT_ADDRESS", zap.String("addr", cfg.ContractAddress))
	}

	contractABI, err := chain.MarketplaceABI()
	if err != nil {
		log.Fatal("failed to parse marketplace abi", zap.Error(err))
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, db.Migrations(), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	client, err := ethclient.DialContext(ctx, cfg.IndexerRPCURL)
	if err != nil {
		log.Fatal("failed to connect to chain rpc", zap.Error(err))
	}
	defer client.Close()

	ix := newIndexer(
		client,
		repositories.NewEventRepo(pool),
		events.NewRedisPublisher(rdb, log),
		rdb,
		contractABI,
		common.HexToAddress(cfg.ContractAddress),
		log,
	)

	log.Info("event indexer started",
		zap.String("contract", cfg.ContractAddress),
		zap.Duration("poll_interval", cfg.IndexerPollInterval),
	)

	if err := ix.initCursor(ctx, cfg.IndexerStartBlock); err != nil {
		log.Fatal("failed to init cursor", zap.Error(err))
	}

	interval := cfg.IndexerPollInterval
	if interval <= 0 {
		interval = 12 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := ix.pollAndProcess(ctx); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down event indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
