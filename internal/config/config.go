package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTP_PORT           string        `env:"HTTP_PORT"`
	DB_STRING           string        `env:"DB_STRING"`
	KAFKA_BROKERS       string        `env:"KAFKA_BROKERS"`
	KAFKA_TOPIC         string        `env:"KAFKA_TOPIC"`
	KAFKA_GROUP_ID      string        `env:"KAFKA_GROUP_ID"`
	KAFKA_RELEASE_TOPIC string        `env:"KAFKA_RELEASE_TOPIC"`
	SCAN_DELAY          time.Duration `env:"SCAN_DELAY"`
	SEED_FIXTURES       bool          `env:"SEED_FIXTURES"`
	CACHE_RESTORE_LIMIT int           `env:"CACHE_RESTORE_LIMIT"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:           os.Getenv("HTTP_PORT"),
		DB_STRING:           os.Getenv("DB_STRING"),
		KAFKA_BROKERS:       os.Getenv("KAFKA_BROKERS"),
		KAFKA_TOPIC:         os.Getenv("KAFKA_TOPIC"),
		KAFKA_GROUP_ID:      os.Getenv("KAFKA_GROUP_ID"),
		KAFKA_RELEASE_TOPIC: os.Getenv("KAFKA_RELEASE_TOPIC"),
		SEED_FIXTURES:       true,
		CACHE_RESTORE_LIMIT: 1000,
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}
	if cfg.KAFKA_TOPIC == "" {
		cfg.KAFKA_TOPIC = "orders"
	}
	if cfg.KAFKA_GROUP_ID == "" {
		cfg.KAFKA_GROUP_ID = "merch-pickup"
	}
	if cfg.KAFKA_RELEASE_TOPIC == "" {
		cfg.KAFKA_RELEASE_TOPIC = "order-releases"
	}

	if v := os.Getenv("SCAN_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid SCAN_DELAY %q", v)
		}
		cfg.SCAN_DELAY = d
	}
	if v := os.Getenv("SEED_FIXTURES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED_FIXTURES %q: %w", v, err)
		}
		cfg.SEED_FIXTURES = b
	}
	if v := os.Getenv("CACHE_RESTORE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid CACHE_RESTORE_LIMIT %q", v)
		}
		cfg.CACHE_RESTORE_LIMIT = n
	}

	return cfg, nil
}

// KafkaEnabled reports whether brokers were configured.
func (c *Config) KafkaEnabled() bool {
	return c.KAFKA_BROKERS != ""
}

// InMemory reports whether the service runs without PostgreSQL.
func (c *Config) InMemory() bool {
	return c.DB_STRING == ""
}
