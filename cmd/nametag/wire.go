package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/adapters/chain"
	"github.com/layer-3/nametag/adapters/events"
	"github.com/layer-3/nametag/adapters/indexer"
	"github.com/layer-3/nametag/adapters/store"
	"github.com/layer-3/nametag/internal/config"
	"github.com/layer-3/nametag/internal/metrics"
	"github.com/layer-3/nametag/internal/ratelimit"
	"github.com/layer-3/nametag/ports"
	"github.com/layer-3/nametag/service"
	httpapi "github.com/layer-3/nametag/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const limiterIdleTTL = 10 * time.Minute

type dependencies struct {
	router  *gin.Engine
	closers []func()
}

// Close releases the dependencies in reverse order of creation.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func wire(ctx context.Context, cfg config.Config) (_ *dependencies, err error) {
	deps := &dependencies{}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	var (
		memory   *store.MemoryStore
		postgres *store.PostgresStore
	)
	if cfg.Storage.Backend == config.BackendMemory || cfg.Storage.ChallengeBackend == config.BackendMemory {
		memory = store.NewMemoryStore()
	}
	if cfg.Storage.Backend == config.BackendPostgres || cfg.Storage.ChallengeBackend == config.BackendPostgres {
		pool, err := store.ConnectPostgres(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pool.Close)

		postgres = store.NewPostgresStore(pool)
		if err := postgres.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	var redisClient *redis.Client
	if cfg.Storage.ChallengeBackend == config.BackendRedis || cfg.Events.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		deps.closers = append(deps.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
	}

	var identityStore ports.IdentityStore = memory
	if cfg.Storage.Backend == config.BackendPostgres {
		identityStore = postgres
	}

	var challengeStore ports.ChallengeStore
	switch cfg.Storage.ChallengeBackend {
	case config.BackendRedis:
		challengeStore = store.NewRedisChallengeStore(redisClient)
	case config.BackendPostgres:
		challengeStore = postgres
	default:
		challengeStore = memory
	}
	log.Info("Storage ready", "identities", cfg.Storage.Backend, "challenges", cfg.Storage.ChallengeBackend)

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		deps.closers = append(deps.closers, func() { _ = publisher.Close() })
		eventPub = events.NewWatermillPublisher(publisher)
	}

	chainID, ethClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.Timeout)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, ethClient.Close)

	var portfolio *service.PortfolioService
	if cfg.Alchemy.APIKey != "" {
		alchemy, err := indexer.NewAlchemyClient(ctx, indexer.Config{
			APIKey:  cfg.Alchemy.APIKey,
			Network: cfg.Alchemy.Network,
			BaseURL: cfg.Alchemy.BaseURL,
			Timeout: cfg.Alchemy.Timeout,
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, alchemy.Close)
		portfolio = service.NewPortfolioService(alchemy)
	} else {
		log.Info("Alchemy API key not set, wallet endpoints disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var limiter *ratelimit.KeyedLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, limiterIdleTTL)
	}

	identities := service.NewIdentityService(identityStore)
	challenges := service.NewChallengeService(
		service.ChallengeConfig{TTL: cfg.Challenge.TTL},
		challengeStore,
		identities,
		eventPub,
		m,
	)
	transfers := service.NewTransferService(identities, chainID, m)

	handlers := httpapi.NewHandlers(identities, challenges, transfers, portfolio)
	deps.router = httpapi.SetupRouter(handlers, httpapi.Options{
		Metrics:        m,
		Gatherer:       registry,
		RateLimiter:    limiter,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		CORSOrigin:     cfg.HTTP.CORSOrigin,
	})
	return deps, nil
}
