package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the Telegram transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// BroadcastConfig tunes the broadcast workflow and the fan-out sender.
type BroadcastConfig struct {
	// SupportGroup is the directory group whose members may run /message and /cancel.
	SupportGroup string `yaml:"support_group" envconfig:"BROADCAST_SUPPORT_GROUP"`
	// MinGroupMembers filters the group picker; smaller groups are not offered.
	MinGroupMembers int `yaml:"min_group_members" envconfig:"BROADCAST_MIN_GROUP_MEMBERS"`
	// Workers bounds the parallelism of the fan-out sender.
	Workers int `yaml:"workers" envconfig:"BROADCAST_WORKERS"`
	// RatePerSec paces direct sends; Telegram caps bots around 30 msg/s.
	RatePerSec int `yaml:"rate_per_sec" envconfig:"BROADCAST_RATE_PER_SEC"`
	// ReportChunkSize limits how many failed recipients are listed per report block.
	ReportChunkSize int `yaml:"report_chunk_size" envconfig:"BROADCAST_REPORT_CHUNK_SIZE"`
	// NoticeTTLSeconds is how long ephemeral notices stay before self-deletion.
	NoticeTTLSeconds int `yaml:"notice_ttl_seconds" envconfig:"BROADCAST_NOTICE_TTL_SECONDS"`
	// EditTimeoutSeconds bounds the wait for the replacement text during Edit.
	// 0 keeps the wait unbounded.
	EditTimeoutSeconds int `yaml:"edit_timeout_seconds" envconfig:"BROADCAST_EDIT_TIMEOUT_SECONDS"`
}

// NoticeTTL returns the ephemeral notice lifetime as a duration.
func (b BroadcastConfig) NoticeTTL() time.Duration {
	return time.Duration(b.NoticeTTLSeconds) * time.Second
}

// EditTimeout returns the edit wait bound; zero means wait indefinitely.
func (b BroadcastConfig) EditTimeout() time.Duration {
	return time.Duration(b.EditTimeoutSeconds) * time.Second
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for per-user rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// DatabaseConfig holds connection settings for the audience directory store.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}
	return normalizeBroadcast(&cfg.Broadcast)
}

func normalizeDatabase(db *DatabaseConfig) error {
	if strings.TrimSpace(db.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(db.User) == "" {
		return fmt.Errorf("database.user is required")
	}
	if strings.TrimSpace(db.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if strings.TrimSpace(db.Port) == "" {
		db.Port = "5432"
	}
	if strings.TrimSpace(db.SSLMode) == "" {
		db.SSLMode = "disable"
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = 10
	}
	return nil
}

func normalizeBroadcast(bc *BroadcastConfig) error {
	bc.SupportGroup = strings.TrimSpace(bc.SupportGroup)
	if bc.SupportGroup == "" {
		return fmt.Errorf("broadcast.support_group is required")
	}
	if bc.MinGroupMembers < 0 {
		return fmt.Errorf("broadcast.min_group_members must be >= 0")
	}
	if bc.MinGroupMembers == 0 {
		bc.MinGroupMembers = 2
	}
	if bc.Workers <= 0 {
		bc.Workers = 8
	}
	if bc.RatePerSec <= 0 {
		bc.RatePerSec = 25
	}
	if bc.ReportChunkSize <= 0 {
		bc.ReportChunkSize = 25
	}
	if bc.NoticeTTLSeconds <= 0 {
		bc.NoticeTTLSeconds = 10
	}
	if bc.EditTimeoutSeconds < 0 {
		return fmt.Errorf("broadcast.edit_timeout_seconds must be >= 0")
	}
	return nil
}
