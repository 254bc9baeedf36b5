// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Outreach OutreachConfig `mapstructure:"outreach"`
	Events   EventsConfig   `mapstructure:"events"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	CORSAllowed     string `mapstructure:"cors_allowed"`
	MaxUploadSizeMB int64  `mapstructure:"max_upload_size_mb"`
	ReadTimeout     int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ImportConfig holds settings for the import executor and wizard flow.
type ImportConfig struct {
	StoreTimeout     int `mapstructure:"store_timeout"`      // milliseconds, per entity-creation call
	ResultsGraceMs   int `mapstructure:"results_grace_ms"`   // delay before Processing->Results when nothing was dispatched
	SessionTTLMinute int `mapstructure:"session_ttl_minute"` // idle session expiry
}

// OutreachConfig holds settings for the external outreach provider.
//
// MessageDelayMs is the single named inter-item delay. The source this service
// replaces carried two different constants (10s in one call path, 5s in the
// wizard path); the value is deliberately one configuration knob passed
// explicitly to the dispatcher.
type OutreachConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	MessageDelayMs int    `mapstructure:"message_delay_ms"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	ResultTTLHours int    `mapstructure:"result_ttl_hours"`
}

// EventsConfig holds settings for the RabbitMQ event publisher.
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
