package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/donghouse/dongometer/internal/types"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.mode", def.Server.Mode)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout.String())
	v.SetDefault("database.url", def.Database.URL)
	v.SetDefault("score.window", def.Score.Window.String())
	v.SetDefault("score.saturation", def.Score.Saturation)
	v.SetDefault("score.cache_ttl", def.Score.CacheTTL.String())
	for name, w := range def.Score.Weights {
		v.SetDefault("score.weights."+name, w)
	}
	v.SetDefault("history.bucket_width", def.History.BucketWidth.String())
	v.SetDefault("history.leaderboard_size", def.History.LeaderboardSize)

	// Bind environment variables with DM_ prefix (DM_SERVER_PORT, ...)
	v.SetEnvPrefix("DM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Mode:            v.GetString("server.mode"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Score: ScoreConfig{
			Window:     v.GetDuration("score.window"),
			Weights:    make(map[string]float64),
			Saturation: v.GetFloat64("score.saturation"),
			CacheTTL:   v.GetDuration("score.cache_ttl"),
		},
		History: HistoryConfig{
			BucketWidth:     v.GetDuration("history.bucket_width"),
			LeaderboardSize: v.GetInt("history.leaderboard_size"),
		},
	}
	cfg.Database.URL = v.GetString("database.url")

	// A weight for an unknown type in the config file is a
	// misconfiguration, not a silent no-op.
	for name := range v.GetStringMap("score.weights") {
		if _, err := types.ParseEventType(name); err != nil {
			return nil, fmt.Errorf("score weights: %w", err)
		}
	}
	// Weights are read per known type so env overrides like
	// DM_SCORE_WEIGHTS_PIZZA resolve; types without a default or override
	// carry weight zero (reset_pizza stays administrative).
	for _, t := range types.EventTypes() {
		cfg.Score.Weights[string(t)] = v.GetFloat64("score.weights." + string(t))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
