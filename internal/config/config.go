package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is read from ./.env and the environment; the environment wins.
type Config struct {
	SchemasDir  string `mapstructure:"streamforge_schemas_dir"`
	TargetsDir  string `mapstructure:"streamforge_targets_dir"`
	RunsDB      string `mapstructure:"streamforge_runs_db"`
	LogLevel    string `mapstructure:"streamforge_log_level"`
	DefaultMode string `mapstructure:"streamforge_default_mode"`
	BatchSize   int    `mapstructure:"streamforge_batch_size"`
	MetricsFile string `mapstructure:"streamforge_metrics_file"`
}

const dotEnv = ".env"

func setDefaults(v *viper.Viper) {
	v.SetDefault("streamforge_schemas_dir", "./schemas")
	v.SetDefault("streamforge_targets_dir", "./targets")
	v.SetDefault("streamforge_runs_db", "./streamforge-runs.sqlite")
	v.SetDefault("streamforge_log_level", "info")
	v.SetDefault("streamforge_default_mode", "create")
	v.SetDefault("streamforge_batch_size", 1000)
	v.SetDefault("streamforge_metrics_file", "")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if _, err := os.Stat(dotEnv); err == nil {
		v.SetConfigFile(dotEnv)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", dotEnv, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("STREAMFORGE_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	return &cfg, nil
}
