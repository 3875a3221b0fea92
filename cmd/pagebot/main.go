package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fadedpez/pagebot/internal/bot"
	"github.com/fadedpez/pagebot/internal/config"
	"github.com/fadedpez/pagebot/internal/cooldown"
	"github.com/fadedpez/pagebot/internal/discord"
	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/metrics"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/internal/plugins/commands"
	"github.com/fadedpez/pagebot/internal/webhook"
	"github.com/fadedpez/pagebot/pkg/scheduler"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/fadedpez/pagebot/pkg/storage/elasticsearch"
	"github.com/fadedpez/pagebot/pkg/storage/file"
	"github.com/fadedpez/pagebot/pkg/storage/memory"
	"github.com/fadedpez/pagebot/pkg/storage/mongo"
	"github.com/fadedpez/pagebot/pkg/storage/sqlite"
	"github.com/jonboulle/clockwork"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.LogError(err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		return logging.NewConsoleLogger(level)
	}
	return logging.NewLogger(level, os.Stdout)
}

// platform is the running transport, webhook server or Discord gateway
type platform interface {
	start() error
	stop(ctx context.Context) error
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	collector := metrics.NewCollector("pagebot")

	store, err := openStorage(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Error closing storage: %v", err)
		}
	}()

	accounts := ledger.NewService(store, ledger.Options{
		StartBalance: cfg.Economy.StartBalance,
		CacheTTL:     cfg.Economy.CacheTTL,
		Clock:        clock,
		Logger:       logger,
		Observer:     collector,
	})

	tracker, err := newCooldownTracker(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}

	registry := plugin.NewRegistry(plugin.Options{
		TrustedAuthor: cfg.Bot.TrustedAuthor,
		AllowAliases:  cfg.Bot.AllowAliases,
		Logger:        logger,
	})
	registry.Load(commands.All(commands.Options{Clock: clock}))

	// The engine needs the messenger and the Discord adapter needs the engine,
	// so the session is created up front.
	var session *discord.DiscordSession
	var out messenger.Messenger
	switch cfg.Messenger.Platform {
	case config.PlatformDiscord:
		session, err = discord.NewSession(cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("error creating Discord session: %w", err)
		}
		out = discord.NewMessenger(session, logger, collector)
	default:
		out = messenger.NewGraphClient(messenger.GraphOptions{
			BaseURL:         cfg.Messenger.GraphURL,
			PageAccessToken: cfg.Messenger.PageAccessToken,
			RateLimit:       cfg.Messenger.RateLimit,
			Burst:           cfg.Messenger.Burst,
			Logger:          logger,
			Observer:        collector,
		})
	}

	builder := bot.NewBuilder(bot.BuilderOptions{
		Ledger:    accounts,
		Messenger: out,
		Admins:    cfg.Admins,
		Settings: plugin.Settings{
			Prefix:         cfg.Bot.Prefix,
			CurrencySymbol: cfg.Economy.CurrencySymbol,
			MaxTransfer:    cfg.Economy.MaxTransfer,
			StartBalance:   cfg.Economy.StartBalance,
		},
		Logger: logger,
	})

	engine := bot.NewEngine(bot.EngineOptions{
		Registry:  registry,
		Cooldowns: tracker,
		Builder:   builder,
		Parse: bot.ParseOptions{
			Prefix:          cfg.Bot.Prefix,
			PrefixEnabled:   cfg.Bot.PrefixEnabled,
			CaseInsensitive: cfg.Bot.CaseInsensitive,
			LowercaseArgs:   cfg.Bot.LowercaseArgs,
		},
		Logger:   logger,
		Recorder: collector,
	})
	if cfg.Bot.ExperiencePerUse > 0 {
		engine.Use(bot.ExperienceHook(cfg.Bot.ExperiencePerUse))
	}

	var transport platform
	if session != nil {
		transport = &discordPlatform{adapter: discord.NewAdapter(session, engine, logger)}
	} else {
		transport = &webhookPlatform{
			addr: fmt.Sprintf(":%d", cfg.Webhook.Port),
			server: webhook.NewServer(webhook.Options{
				VerifyToken: cfg.Webhook.VerifyToken,
				AppSecret:   cfg.Webhook.AppSecret,
				Processor:   engine,
				Logger:      logger,
				Metrics:     collector.Handler(),
				Debug:       cfg.IsDevelopment(),
			}),
			errs: make(chan error, 1),
		}
	}

	tasks := scheduler.NewScheduler(clock, logger)
	tasks.AddTask("compensation-retry", cfg.Economy.RetryInterval, accounts.RetryCompensations)
	tasks.Start(ctx)

	if err := transport.start(); err != nil {
		tasks.Stop()
		return err
	}
	logger.Info("Bot is now running on %s. Press CTRL-C to exit.", cfg.Messenger.Platform)

	var runErr error
	if wp, ok := transport.(*webhookPlatform); ok {
		select {
		case <-ctx.Done():
		case runErr = <-wp.errs:
		}
	} else {
		<-ctx.Done()
	}

	// Shutdown order: stop intake, drain in-flight events, then background work
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Webhook.DrainTime)
	defer cancel()

	if err := transport.stop(shutdownCtx); err != nil {
		logger.Warn("Error stopping %s transport: %v", cfg.Messenger.Platform, err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err)
	}
	tasks.Stop()

	if pending := accounts.PendingCompensations(); len(pending) > 0 {
		logger.Error("%d compensations still pending at shutdown", len(pending))
		for _, c := range pending {
			logger.Error("Pending refund of %d to %s (%s)", c.Amount, c.UserID, c.Reason)
		}
	}

	return runErr
}

func openStorage(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *logging.Logger) (storage.Storage, error) {
	var base storage.Storage
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data will be lost on restart")
		base = memory.New(clock)
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.Storage.SQLitePath, clock, logger)
		if err != nil {
			return nil, err
		}
		base = store
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongo.Connect(connectCtx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, clock)
		if err != nil {
			return nil, err
		}
		base = store
	default:
		store, err := file.New(file.Options{Dir: cfg.DataDir, Clock: clock})
		if err != nil {
			return nil, err
		}
		base = store
	}
	logger.Info("Using %s storage", cfg.Storage.Driver)

	if !cfg.Elasticsearch.Enabled() {
		return base, nil
	}

	indexed, err := elasticsearch.New(ctx, base, elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		Index:     cfg.Elasticsearch.Index,
	}, logger)
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("error initializing transaction index: %w", err)
	}
	return indexed, nil
}

func newCooldownTracker(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *logging.Logger) (cooldown.Tracker, error) {
	if !cfg.Redis.Enabled() {
		return cooldown.NewMemoryTracker(clock), nil
	}

	client, err := cooldown.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("Tracking cooldowns in Redis at %s", cfg.Redis.Addr)
	return cooldown.NewRedisTracker(client, clock, logger), nil
}

type webhookPlatform struct {
	addr   string
	server *webhook.Server
	errs   chan error
}

func (p *webhookPlatform) start() error {
	go func() {
		if err := p.server.ListenAndServe(p.addr); err != nil {
			p.errs <- err
		}
	}()
	return nil
}

func (p *webhookPlatform) stop(ctx context.Context) error {
	return p.server.Shutdown(ctx)
}

type discordPlatform struct {
	adapter *discord.Adapter
}

func (p *discordPlatform) start() error {
	return p.adapter.Start()
}

func (p *discordPlatform) stop(ctx context.Context) error {
	return p.adapter.Stop()
}
