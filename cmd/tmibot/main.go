package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tmi/internal/client"
	"github.com/pscheid92/tmi/internal/connection"
	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/eventsub"
	"github.com/pscheid92/tmi/internal/httpserver"
	"github.com/pscheid92/tmi/internal/platform/config"
	"github.com/pscheid92/tmi/internal/platform/logging"
	"github.com/pscheid92/tmi/internal/platform/version"
	"github.com/pscheid92/tmi/internal/redis"
	"github.com/pscheid92/tmi/internal/streams"
)

const (
	shutdownTimeout    = 10 * time.Second
	redisDialTimeout   = 10 * time.Second
	topChannelsTimeout = 30 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	rdb, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return rdb
}

func setupDeduper(rdb *goredis.Client, clock clockwork.Clock) domain.Deduper {
	if rdb != nil {
		return redis.NewDeduper(rdb)
	}
	slog.Info("No REDIS_URL set, deduplicating webhook deliveries in memory")
	return eventsub.NewMemoryDeduper(clock)
}

func setupServer(cfg *config.Config, bot *client.Client, rdb *goredis.Client, clock clockwork.Clock) *httpserver.Server {
	checks := []httpserver.HealthCheck{{
		Name: "chat",
		Check: func(context.Context) error {
			if s := bot.State(); s != client.Ready {
				return errors.New("chat client is " + s.String())
			}
			return nil
		},
	}}
	if rdb != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	srvCfg := httpserver.Config{Addr: cfg.HTTPAddr, HealthChecks: checks, Clock: clock}
	if cfg.WebhookEnabled() {
		webhook := eventsub.NewHandler(cfg.WebhookSecret, setupDeduper(rdb, clock), bot, clock)
		srvCfg.Webhook = webhook.HandleEventSub
	}
	return httpserver.NewServer(srvCfg)
}

// joinTopChannels adds the most viewed live channels to the configured ones.
func joinTopChannels(ctx context.Context, cfg *config.Config, bot *client.Client, info version.Info) {
	source, err := streams.New(streams.Config{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		UserAgent:    info.UserAgent(),
	})
	if err != nil {
		slog.Error("Failed to create channel source", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, topChannelsTimeout)
	defer cancel()

	logins, err := source.TopChannels(ctx, cfg.TopChannels)
	if err != nil {
		slog.Error("Failed to fetch top channels", "error", err)
		return
	}
	slog.Info("Joining top channels", "count", len(logins))
	if err := bot.JoinChannels(ctx, logins...); err != nil {
		slog.Error("Failed to join top channels", "error", err)
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	info.Publish()
	slog.Info("tmibot starting", "version", info.Version, "commit", info.Commit, "login", cfg.Login, "anonymous", cfg.Anonymous())

	rdb := setupRedis(cfg)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	conn := connection.New(connection.Config{
		URL:       cfg.URL,
		Login:     cfg.Login,
		Token:     cfg.Token,
		KeepAlive: cfg.KeepAlive,
		Clock:     clock,
	})
	bot := client.New(conn,
		client.WithClock(clock),
		client.WithAccumulationTimeout(cfg.AccumulationTimeout),
		client.WithMessageRate(cfg.MessageRate),
		client.WithJoinRate(cfg.JoinRate),
	)
	if err := registerHandlers(bot); err != nil {
		slog.Error("Failed to register handlers", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := setupServer(cfg, bot, rdb, clock)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	if err := bot.Start(ctx, cfg.ChannelList()...); err != nil {
		slog.Error("Failed to start chat client", "error", err)
		shutdown(srv, bot)
		os.Exit(1)
	}
	if cfg.TopChannels > 0 {
		go joinTopChannels(ctx, cfg, bot, info)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- bot.Wait() }()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, cleaning up...")
	case err := <-runErr:
		if err != nil {
			slog.Error("Chat client stopped", "error", err)
			exitCode = 1
		}
	}

	shutdown(srv, bot)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func shutdown(srv *httpserver.Server, bot *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	if err := bot.Close(); err != nil {
		slog.Error("Chat client close error", "error", err)
	}
}
