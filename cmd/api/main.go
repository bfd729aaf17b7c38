package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/db"
	"github.com/tewo-market/gateway/internal/events"
	apphttp "github.com/tewo-market/gateway/internal/http"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/http/handlers"
	"github.com/tewo-market/gateway/internal/metrics"
	"github.com/tewo-market/gateway/internal/repositories"
	"github.com/tewo-market/gateway/internal/services"
	"github.com/tewo-market/gateway/internal/session"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	contractABI, err := chain.MarketplaceABI()
	if err != nil {
		log.Fatal("failed to parse marketplace abi", zap.Error(err))
	}

	// Redis carries pub/sub and rate limiting for every backend except memory
	var rdb *redis.Client
	if cfg.StateBackend != config.BackendMemory {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			if cfg.StateBackend == config.BackendRedis {
				log.Fatal("failed to connect to redis", zap.Error(err))
			}
			log.Warn("redis unavailable, using in-process events", zap.Error(err))
			rdb = nil
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Postgres holds indexed events, and wallet state for the postgres backend
	var pool *pgxpool.Pool
	if cfg.StateBackend != config.BackendMemory {
		pool, err = db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			if cfg.StateBackend == config.BackendPostgres {
				log.Fatal("failed to connect to postgres", zap.Error(err))
			}
			log.Warn("postgres unavailable, activity feed disabled", zap.Error(err))
			pool = nil
		}
	}
	if pool != nil {
		defer pool.Close()
		if err := db.RunMigrations(ctx, pool, db.Migrations(), log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Repositories
	var state repositories.StateRepo
	switch cfg.StateBackend {
	case config.BackendPostgres:
		state = repositories.NewPostgresStateRepo(pool)
	case config.BackendRedis:
		state = repositories.NewRedisStateRepo(rdb, cfg.JWTExpiration)
	default:
		state = repositories.NewMemoryStateRepo()
	}
	var eventLister handlers.EventLister
	if pool != nil {
		eventLister = repositories.NewEventRepo(pool)
	}

	// Events
	var (
		publisher  events.Publisher
		subscriber events.Subscriber
	)
	if rdb != nil {
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	} else {
		bus := events.NewLocalBus()
		publisher, subscriber = bus, bus
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Wallet provider
	var provider chain.Provider
	if cfg.WalletRPCURL != "" {
		p, err := chain.DialProvider(ctx, cfg.WalletRPCURL, cfg.WalletPollInterval, log)
		if err != nil {
			log.Warn("wallet provider unavailable", zap.Error(err))
		} else {
			defer p.Close()
			go p.Run(ctx)
			provider = p
		}
	}

	// Price oracle
	var oracle services.PriceOracle
	if cfg.PriceFeedRPCURL != "" {
		client, err := ethclient.DialContext(ctx, cfg.PriceFeedRPCURL)
		if err != nil {
			log.Warn("price feed rpc unavailable", zap.Error(err))
		} else {
			defer client.Close()
			oracle = chain.NewPriceFeed(client, common.HexToAddress(cfg.PriceFeedAddress))
		}
	}

	// Name resolution
	var resolver services.Resolver
	if cfg.ENSRPCURL != "" {
		client, err := dialENS(ctx, cfg, log)
		if err != nil {
			log.Warn("name resolution disabled", zap.Error(err))
		} else {
			defer client.Close()
			resolver = chain.NewENSResolver(client, common.HexToAddress(cfg.ENSRegistryAddress))
		}
	}

	// Services
	steps, closeSteps := buildRewardSteps(ctx, cfg, log)
	defer closeSteps()
	rewards := services.NewRewardService(cfg.BonusQuantityThreshold, steps, m, log)
	go rewards.Start(ctx)

	notify := services.NewNotificationService(cfg.NotificationTTL, publisher, log)
	market := services.NewMarketplaceService(rewards, publisher, m, log)
	pricing := services.NewPricingService(oracle, cfg, log)
	catalog := services.NewCatalogService(market, pricing, log)
	identity := services.NewIdentityService(resolver, log)
	registry := session.NewRegistry(ctx, provider, state, contractABI, publisher, m, cfg, log)
	go registry.Run(ctx)

	// Handlers
	scope := handlers.NewScope(registry, notify, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	h := apphttp.Handlers{
		Scope:   scope,
		Session: handlers.NewSessionHandler(scope, registry, notify, cfg, log),
		Wallet:  handlers.NewWalletHandler(scope, identity, log),
		Produce: handlers.NewProduceHandler(scope, market, catalog, log),
		Gig:     handlers.NewGigHandler(scope, market, log),
		Role:    handlers.NewRoleHandler(scope, market, log),
		Rate:    handlers.NewRateHandler(scope, pricing, log),
		Events:  handlers.NewEventsHandler(scope, eventLister, log),
		WSHub:   wsHub,
	}

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe ws hub", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, m, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		registry.CloseAll()
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("state_backend", cfg.StateBackend),
		zap.Bool("wallet", provider != nil),
		zap.Bool("bonus", len(steps) > 0),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// dialENS connects to the name service network and checks it is the one the
// registry address belongs to.
func dialENS(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.ENSRPCURL)
	if err != nil {
		return nil, err
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ens chain id: %w", err)
	}
	if id.Int64() != cfg.ENSChainID {
		log.Warn("ENS_RPC_URL is on an unexpected chain",
			zap.Int64("want", cfg.ENSChainID),
			zap.Int64("got", id.Int64()),
		)
	}
	return client, nil
}
