package main

import (
	"fmt"
	"strings"

	"referral_platform/internal/jobs"
	"referral_platform/internal/locker"
	"referral_platform/internal/middleware"
	"referral_platform/internal/repository"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database   repository.Config     `yaml:"database"`
	Server     ServerConfig          `yaml:"server"`
	Redis      RedisConfig           `yaml:"redis"`
	Commission CommissionConfig      `yaml:"commission"`
	Reconciler jobs.ReconcilerConfig `yaml:"reconciler"`
	Ingest     IngestConfig          `yaml:"ingest"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host      string                     `yaml:"host"`
	Port      string                     `yaml:"port"`
	RateLimit middleware.RateLimitConfig `yaml:"rateLimit"`
}

type RedisConfig struct {
	Enabled            bool `yaml:"enabled"`
	locker.RedisConfig `mapstructure:",squash"`
}

// CommissionConfig holds the per-level rates as fractions of the payment
// amount.
type CommissionConfig struct {
	Level1 float64 `yaml:"level1"`
	Level2 float64 `yaml:"level2"`
	Level3 float64 `yaml:"level3"`
}

type IngestConfig struct {
	Token string `yaml:"token"`
}

func LoadConfig() (*Config, error) {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.rateLimit.requestsPerSecond", 20)
	viper.SetDefault("server.rateLimit.burst", 40)
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("commission.level1", 0.10)
	viper.SetDefault("commission.level2", 0.05)
	viper.SetDefault("commission.level3", 0.03)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.lockTTL", "30s")

	viper.SetDefault("reconciler.enabled", true)
	viper.SetDefault("reconciler.schedule", "@every 5m")
	viper.SetDefault("reconciler.lookback", "72h")
	viper.SetDefault("reconciler.batchSize", 200)
}
