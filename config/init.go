package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	internalconfig "github.com/customeros/bccstack/internal/config"
	cron_config "github.com/customeros/bccstack/internal/cron/config"
	"github.com/customeros/bccstack/internal/database"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/services/storage"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *database.DatabaseConfig
	RedisConfig    *RedisConfig
	StorageConfig  *storage.Config
	CaptureConfig  *internalconfig.CaptureConfig
	RelayAConfig   *internalconfig.RelayAConfig
	RelayBConfig   *internalconfig.RelayBConfig
	RateLimit      *internalconfig.RateLimitConfig
	CronConfig     *cron_config.Config
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &database.DatabaseConfig{},
		RedisConfig:    &RedisConfig{},
		StorageConfig:  &storage.Config{},
		CaptureConfig:  &internalconfig.CaptureConfig{},
		RelayAConfig:   &internalconfig.RelayAConfig{},
		RelayBConfig:   &internalconfig.RelayBConfig{},
		RateLimit:      &internalconfig.RateLimitConfig{},
		CronConfig:     &cron_config.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading bccstack config: %v", err)
	}

	return config, nil
}
