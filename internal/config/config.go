// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Session  SessionConfig  `mapstructure:"session"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout_seconds"`
}

// EngineConfig sizes the worker pool and the completed-job cache.
type EngineConfig struct {
	MaxWorkers  int `mapstructure:"max_workers"`
	QueueDepth  int `mapstructure:"queue_depth"`
	HistorySize int `mapstructure:"history_size"`
}

// SessionConfig governs browser sessions and page pacing.
type SessionConfig struct {
	Headless       bool   `mapstructure:"headless"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	ItemDelayMs    int    `mapstructure:"item_delay_ms"`
	SettleDelayMs  int    `mapstructure:"settle_delay_ms"`
	WaitTimeoutSec int    `mapstructure:"wait_timeout_seconds"`
}

// ProgressConfig tunes the event hub and websocket streaming.
type ProgressConfig struct {
	BufferSize       int `mapstructure:"buffer_size"`
	MaxBatchEvents   int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs   int `mapstructure:"max_batch_wait_ms"`
	ThrottleMs       int `mapstructure:"throttle_ms"`
	WriteTimeoutSec  int `mapstructure:"write_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("engine.max_workers", 5)
	v.SetDefault("engine.queue_depth", 64)
	v.SetDefault("engine.history_size", 20)
	v.SetDefault("session.headless", true)
	v.SetDefault("session.user_agent", "scholarstream-bot/0.1")
	v.SetDefault("session.max_parallel", 5)
	v.SetDefault("session.nav_timeout_seconds", 45)
	v.SetDefault("session.item_delay_ms", 500)
	v.SetDefault("session.settle_delay_ms", 1500)
	v.SetDefault("session.wait_timeout_seconds", 10)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 64)
	v.SetDefault("progress.max_batch_wait_ms", 200)
	v.SetDefault("progress.throttle_ms", 0)
	v.SetDefault("progress.write_timeout_seconds", 5)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Engine.MaxWorkers <= 0 {
		return fmt.Errorf("engine.max_workers must be > 0")
	}
	if c.Engine.HistorySize <= 0 {
		return fmt.Errorf("engine.history_size must be > 0")
	}
	if c.Session.Headless && c.Session.MaxParallel <= 0 {
		return fmt.Errorf("session.max_parallel must be > 0 when headless is enabled")
	}
	if c.Session.NavTimeoutSec <= 0 {
		return fmt.Errorf("session.nav_timeout_seconds must be > 0")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout to a duration.
func (c SessionConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// ItemDelay converts the per-item pacing delay to a duration.
func (c SessionConfig) ItemDelay() time.Duration {
	return time.Duration(c.ItemDelayMs) * time.Millisecond
}

// SettleDelay converts the post-navigation settle delay to a duration.
func (c SessionConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// WaitTimeout converts the element wait timeout to a duration.
func (c SessionConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSec) * time.Second
}

// MaxBatchWait converts the hub flush interval to a duration.
func (c ProgressConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMs) * time.Millisecond
}

// Throttle converts the per-client websocket throttle to a duration.
func (c ProgressConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMs) * time.Millisecond
}

// WriteTimeout converts the websocket write deadline to a duration.
func (c ProgressConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// ShutdownTimeout converts the graceful shutdown budget to a duration.
func (c ServerConfig) ShutdownTimeoutDur() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}
