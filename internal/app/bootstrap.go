package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"queue_go/internal/domain"
	"queue_go/internal/engine"
	"queue_go/internal/execution"
	"queue_go/internal/infra"
	"queue_go/internal/infra/binance"
	"queue_go/internal/infra/push"
	"queue_go/internal/infra/storage"
	"queue_go/internal/snapshot"
	"queue_go/internal/state"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Client    *binance.Client
	Publisher *snapshot.RedisPublisher
	Notifier  domain.Notifier

	Manager    *engine.Manager
	Streams    *binance.MarketStreams
	UserStream *binance.UserStream
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logging, journal
// DB, Redis and the exchange client. Configuration faults fail fast here.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Queue Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (Journal DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Journal database initialized")

	// 4. Redis snapshot publisher
	b.Publisher = snapshot.NewRedisPublisher(redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	}))
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.Publisher.Ping(pingCtx); err != nil {
		return err
	}
	slog.Info("✅ Redis connected", slog.String("addr", cfg.Redis.Addr))

	// 5. Push notifier
	if cfg.Push.Enabled {
		b.Notifier = push.NewExpoNotifier(cfg.Push.Tokens)
		slog.Info("✅ Push notifier ready", slog.Int("tokens", len(cfg.Push.Tokens)))
	}

	// 6. Exchange REST client
	b.Client = binance.NewClient(cfg)

	return nil
}

// Wire assembles the reconciliation engine and its streams. Call after
// Initialize.
func (b *Bootstrap) Wire() {
	cfg := b.Config

	mgrCfg := engine.ManagerConfig{
		AllowedInstruments: cfg.API.Binance.Instruments,
		InboxSize:          cfg.Engine.InboxSize,
		Decision:           b.decisionConfig(),
		Central:            b.centralConfig(),
	}

	var executor domain.OrderExecutor = b.Client
	if cfg.Engine.DryRun {
		executor = execution.NewPaperExecutor()
		slog.Warn("⚠️ Dry run: order actions go to the paper executor")
	}

	b.Manager = engine.NewManager(mgrCfg, engine.ManagerDeps{
		Executor: executor,
		Fetcher:  b.Client,
		Notifier: b.Notifier,
		Sink:     b.Publisher,
		Builder:  snapshot.NewBuilder(),
		Journal:  b.Storage,
		Orders:   b.Storage,
	})

	b.Streams = binance.NewMarketStreams(cfg.API.Binance.WSURL, b.Manager)
	b.Manager.SetStreams(b.Streams)

	b.UserStream = binance.NewUserStream(b.Client, cfg.API.Binance.WSURL, b.Manager)
}

// decisionConfig overlays configured thresholds onto the defaults. The
// numbers were never finalized upstream, so anything unset keeps its
// default.
func (b *Bootstrap) decisionConfig() engine.DecisionConfig {
	cfg := engine.DefaultDecisionConfig()
	e := b.Config.Engine

	if e.BuyDepthFloor.IsPositive() {
		cfg.BuyDepthFloor = e.BuyDepthFloor
	}
	if e.SecondBidQueueFloor.IsPositive() {
		cfg.SecondBidQueueFloor = e.SecondBidQueueFloor
	}
	if e.SecondBidDepthFloor.IsPositive() {
		cfg.SecondBidDepthFloor = e.SecondBidDepthFloor
	}
	if e.EntryBandLower.IsPositive() {
		cfg.EntryBandLower = e.EntryBandLower
	}
	if e.EntryBandUpper.IsPositive() {
		cfg.EntryBandUpper = e.EntryBandUpper
	}
	if e.RetryAttempts > 0 {
		cfg.RetryAttempts = e.RetryAttempts
	}
	if e.RetryDelayMS > 0 {
		cfg.RetryDelay = time.Duration(e.RetryDelayMS) * time.Millisecond
	}
	return cfg
}

func (b *Bootstrap) centralConfig() state.CentralConfig {
	cfg := state.DefaultCentralConfig()
	c := b.Config.Central

	if c.CollapseFloor.IsPositive() {
		cfg.CollapseFloor = c.CollapseFloor
	}
	if len(c.DropThresholds) > 0 {
		cfg.DropThresholds = c.DropThresholds
	}
	return cfg
}
