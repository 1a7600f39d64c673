// Package config provides configuration management for the Dongometer engine.
package config

import (
	"fmt"
	"time"

	"github.com/donghouse/dongometer/internal/types"
)

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string // gin mode: debug, release, test
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// ScoreConfig holds chaos score tuning. The weights and constants were
// tuned empirically on the original dashboard and are expected to change,
// so they are configuration rather than code.
type ScoreConfig struct {
	Window     time.Duration
	Weights    map[string]float64 // keyed by event type
	Saturation float64
	CacheTTL   time.Duration // 0 disables the score cache
}

// HistoryConfig holds bucket aggregation settings.
type HistoryConfig struct {
	BucketWidth     time.Duration
	LeaderboardSize int
}

// Config is the full engine configuration.
type Config struct {
	Server   ServerConfig
	Database struct {
		URL string
	}
	Score   ScoreConfig
	History HistoryConfig
}

// Default returns configuration with default values.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			Mode:            "release",
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Score: ScoreConfig{
			Window: 15 * time.Minute,
			Weights: map[string]float64{
				string(types.EventChatMessage): 2,
				string(types.EventDoorOpen):    5,
				string(types.EventDoorClose):   1,
				string(types.EventPizza):       2,
			},
			Saturation: 25,
			CacheTTL:   2 * time.Second,
		},
		History: HistoryConfig{
			BucketWidth:     time.Hour,
			LeaderboardSize: 10,
		},
	}
	cfg.Database.URL = "sqlite://dongometer.db"
	return cfg
}

// Validate checks ranges and positivity constraints.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Score.Window <= 0 {
		return fmt.Errorf("score window must be positive, got %v", cfg.Score.Window)
	}
	if cfg.Score.Saturation <= 0 {
		return fmt.Errorf("score saturation must be positive, got %v", cfg.Score.Saturation)
	}
	if cfg.Score.CacheTTL < 0 {
		return fmt.Errorf("score cache_ttl must not be negative, got %v", cfg.Score.CacheTTL)
	}
	for name, w := range cfg.Score.Weights {
		if _, err := types.ParseEventType(name); err != nil {
			return fmt.Errorf("score weights: %w", err)
		}
		if w < 0 {
			return fmt.Errorf("score weight for %s must not be negative, got %v", name, w)
		}
	}
	if cfg.History.BucketWidth <= 0 {
		return fmt.Errorf("bucket_width must be positive, got %v", cfg.History.BucketWidth)
	}
	if cfg.History.LeaderboardSize <= 0 {
		return fmt.Errorf("leaderboard_size must be positive, got %d", cfg.History.LeaderboardSize)
	}
	return nil
}
