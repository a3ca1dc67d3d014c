package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/pscheid92/tmi/internal/domain"
)

type Config struct {
	Login               string        `env:"TMI_LOGIN" default:"justinfan12345"`
	Token               string        `env:"TMI_TOKEN"`
	Channels            string        `env:"TMI_CHANNELS"`
	URL                 string        `env:"TMI_URL" default:"wss://irc-ws.chat.twitch.tv:443"`
	KeepAlive           bool          `env:"TMI_KEEP_ALIVE" default:"true"`
	AccumulationTimeout time.Duration `env:"TMI_ACCUMULATION_TIMEOUT" default:"30s"`
	MessageRate         int           `env:"TMI_MESSAGE_RATE" default:"20"` // per 30s
	JoinRate            int           `env:"TMI_JOIN_RATE" default:"20"`    // per 10s

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	HTTPAddr  string `env:"HTTP_ADDR" default:":8080"`

	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`
	TopChannels        int    `env:"TOP_CHANNELS" default:"0"`
	WebhookSecret      string `env:"WEBHOOK_SECRET"`
	RedisURL           string `env:"REDIS_URL"`
}

// ChannelList returns the configured channel logins, lowercased, without "#".
func (c *Config) ChannelList() []string {
	var logins []string
	for _, s := range strings.Split(c.Channels, ",") {
		s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
		if s != "" {
			logins = append(logins, s)
		}
	}
	return logins
}

// Anonymous reports whether the client connects read-only.
func (c *Config) Anonymous() bool {
	return c.Token == "" && domain.IsAnonymousLogin(c.Login)
}

// WebhookEnabled reports whether the EventSub receiver should be mounted.
func (c *Config) WebhookEnabled() bool {
	return c.WebhookSecret != ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Login == "" {
		return errors.New("TMI_LOGIN is required")
	}
	if cfg.Token != "" && domain.IsAnonymousLogin(cfg.Login) {
		return errors.New("TMI_TOKEN requires a non-anonymous TMI_LOGIN")
	}
	if cfg.Token == "" && !domain.IsAnonymousLogin(cfg.Login) {
		return fmt.Errorf("TMI_TOKEN is required for login %q", cfg.Login)
	}

	if cfg.AccumulationTimeout <= 0 {
		return errors.New("TMI_ACCUMULATION_TIMEOUT must be positive")
	}
	if cfg.MessageRate <= 0 || cfg.JoinRate <= 0 {
		return errors.New("TMI_MESSAGE_RATE and TMI_JOIN_RATE must be positive")
	}

	if cfg.TopChannels < 0 {
		return errors.New("TOP_CHANNELS must not be negative")
	}
	if cfg.TopChannels > 0 {
		required := map[string]string{
			"TWITCH_CLIENT_ID":     cfg.TwitchClientID,
			"TWITCH_CLIENT_SECRET": cfg.TwitchClientSecret,
		}
		for name, value := range required {
			if value == "" {
				return fmt.Errorf("%s is required when TOP_CHANNELS is set", name)
			}
		}
	}

	if cfg.WebhookSecret != "" && (len(cfg.WebhookSecret) < 10 || len(cfg.WebhookSecret) > 100) {
		return errors.New("WEBHOOK_SECRET must be between 10 and 100 characters")
	}

	return nil
}
