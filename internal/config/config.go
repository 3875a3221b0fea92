package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Messenger platforms
const (
	PlatformGraph   = "graph"
	PlatformDiscord = "discord"
)

// Config holds all configuration for the application
type Config struct {
	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development" or "production"
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DataDir     string `env:"DATA_DIR" envDefault:"data"`

	// Admins are platform user IDs allowed to run role-gated commands
	Admins []string `env:"ADMIN_UIDS" envSeparator:","`

	Bot           BotConfig           `envPrefix:"BOT_"`
	Economy       EconomyConfig       `envPrefix:"ECONOMY_"`
	Storage       StorageConfig       `envPrefix:"STORAGE_"`
	Elasticsearch ElasticsearchConfig `envPrefix:"ELASTICSEARCH_"`
	Redis         RedisConfig         `envPrefix:"REDIS_"`
	Messenger     MessengerConfig     `envPrefix:"MESSENGER_"`
	Webhook       WebhookConfig       `envPrefix:"WEBHOOK_"`
	Discord       DiscordConfig       `envPrefix:"DISCORD_"`
}

// BotConfig controls how text is parsed into commands
type BotConfig struct {
	Prefix           string `env:"PREFIX" envDefault:"/"`
	PrefixEnabled    bool   `env:"PREFIX_ENABLED" envDefault:"true"`
	CaseInsensitive  bool   `env:"CASE_INSENSITIVE" envDefault:"true"`
	LowercaseArgs    bool   `env:"LOWERCASE_ARGS" envDefault:"false"`
	AllowAliases     bool   `env:"ALLOW_ALIASES" envDefault:"true"`
	TrustedAuthor    string `env:"TRUSTED_AUTHOR" envDefault:"IRFAN"`
	ExperiencePerUse int    `env:"EXPERIENCE_PER_USE" envDefault:"5"`
}

// EconomyConfig holds ledger settings
type EconomyConfig struct {
	StartBalance   int64         `env:"START_BALANCE" envDefault:"1000"`
	CurrencySymbol string        `env:"CURRENCY_SYMBOL" envDefault:"💰"`
	MaxTransfer    int64         `env:"MAX_TRANSFER" envDefault:"1000000"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	RetryInterval  time.Duration `env:"COMPENSATION_RETRY_INTERVAL" envDefault:"30s"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver        string `env:"DRIVER" envDefault:"file"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/pagebot.db"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"pagebot"`
}

// ElasticsearchConfig enables the transaction audit index
type ElasticsearchConfig struct {
	Addresses []string `env:"ADDRESSES" envSeparator:","`
	Username  string   `env:"USERNAME"`
	Password  string   `env:"PASSWORD"`
	Index     string   `env:"INDEX" envDefault:"pagebot-transactions"`
}

// Enabled reports whether an Elasticsearch cluster is configured
func (c ElasticsearchConfig) Enabled() bool {
	return len(c.Addresses) > 0
}

// RedisConfig enables shared cooldown tracking
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Enabled reports whether a Redis server is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MessengerConfig configures outbound delivery
type MessengerConfig struct {
	Platform        string  `env:"PLATFORM" envDefault:"graph"`
	PageAccessToken string  `env:"PAGE_ACCESS_TOKEN"`
	GraphURL        string  `env:"GRAPH_URL" envDefault:"https://graph.facebook.com/v18.0"`
	RateLimit       float64 `env:"RATE_LIMIT" envDefault:"20"`
	Burst           int     `env:"BURST" envDefault:"40"`
}

// WebhookConfig configures the inbound HTTP server
type WebhookConfig struct {
	Port        int           `env:"PORT" envDefault:"3000"`
	VerifyToken string        `env:"VERIFY_TOKEN"`
	AppSecret   string        `env:"APP_SECRET"`
	DrainTime   time.Duration `env:"DRAIN_TIMEOUT" envDefault:"10s"`
}

// DiscordConfig configures the Discord adapter
type DiscordConfig struct {
	Token string `env:"TOKEN"`
	AppID string `env:"APP_ID"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Only return error if file exists but couldn't be loaded
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg, err := parse(env.Options{})
	if err != nil {
		return nil, err
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// LoadFrom parses configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks if all required configuration is present
func (c *Config) validate() error {
	if c.Bot.PrefixEnabled && c.Bot.Prefix == "" {
		return fmt.Errorf("BOT_PREFIX is required when BOT_PREFIX_ENABLED is set")
	}
	if c.Bot.TrustedAuthor == "" {
		return fmt.Errorf("BOT_TRUSTED_AUTHOR is required")
	}
	if c.Economy.StartBalance < 0 {
		return fmt.Errorf("ECONOMY_START_BALANCE must not be negative")
	}
	if c.Economy.MaxTransfer <= 0 {
		return fmt.Errorf("ECONOMY_MAX_TRANSFER must be positive")
	}
	if c.Economy.RetryInterval <= 0 {
		return fmt.Errorf("ECONOMY_COMPENSATION_RETRY_INTERVAL must be positive")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("STORAGE_MONGO_URI is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Messenger.Platform {
	case PlatformGraph:
		if c.Messenger.PageAccessToken == "" {
			return fmt.Errorf("MESSENGER_PAGE_ACCESS_TOKEN is required for the graph platform")
		}
		if c.Webhook.VerifyToken == "" {
			return fmt.Errorf("WEBHOOK_VERIFY_TOKEN is required for the graph platform")
		}
	case PlatformDiscord:
		if c.Discord.Token == "" {
			return fmt.Errorf("DISCORD_TOKEN is required for the discord platform")
		}
	default:
		return fmt.Errorf("unknown MESSENGER_PLATFORM %q", c.Messenger.Platform)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsAdmin reports whether the user ID is in the admin list
func (c *Config) IsAdmin(userID string) bool {
	return userID != "" && slices.Contains(c.Admins, userID)
}
