// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Delivery Configuration ---

// AWSConfig holds the region shared by SES and SNS clients.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// SlackConfig holds the bot token used by the chat channel.
type SlackConfig struct {
	Token string `mapstructure:"token"`
}

// ChannelsConfig holds per-channel delivery defaults. Connector rows in the
// database override these per schedule.
type ChannelsConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		LogoPath  string `mapstructure:"logo_path"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	Chat struct {
		Enabled      bool   `mapstructure:"enabled"`
		Channel      string `mapstructure:"channel"`
		DirectToUser bool   `mapstructure:"direct_to_user"`
	} `mapstructure:"chat"`
}

// DispatchConfig holds engine tuning: recipient pool size, lock TTL, the
// recurrence sweep spec, and where rendered templates live on disk.
type DispatchConfig struct {
	PoolSize     int    `mapstructure:"pool_size"`
	LockTTL      int    `mapstructure:"lock_ttl"` // milliseconds
	SweepSpec    string `mapstructure:"sweep_spec"`
	TemplateRoot string `mapstructure:"template_root"`
}

// AuditConfig controls the optional Elasticsearch notification mirror.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
