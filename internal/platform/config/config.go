package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-wide configuration.
type Server struct {
	Addr       string `env:"QUORUM_ADDR"         envDefault:":8080"`
	LogLevel   string `env:"QUORUM_LOG_LEVEL"    envDefault:"info"`
	LogFormat  string `env:"QUORUM_LOG_FORMAT"   envDefault:"json"`
	SchemaPath string `env:"QUORUM_QUOTA_SCHEMA"`

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// DatabaseConfig selects PostgreSQL storage. An empty URL keeps every store
// in memory.
type DatabaseConfig struct {
	URL             string        `env:"QUORUM_DATABASE_URL"`
	MaxOpenConns    int           `env:"QUORUM_DATABASE_MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"QUORUM_DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"QUORUM_DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig selects the distributed person lock. An empty URL falls back
// to an in-process lock.
type RedisConfig struct {
	URL          string        `env:"QUORUM_REDIS_URL"`
	PoolSize     int           `env:"QUORUM_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"QUORUM_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"QUORUM_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"QUORUM_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"QUORUM_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
	LockTTL      time.Duration `env:"QUORUM_REDIS_LOCK_TTL"       envDefault:"10s"`
}

// KafkaConfig enables the outbox worker. No brokers disables publishing.
type KafkaConfig struct {
	Brokers        []string      `env:"QUORUM_KAFKA_BROKERS"   envSeparator:","`
	Topic          string        `env:"QUORUM_KAFKA_TOPIC"     envDefault:"quorum.audit"`
	OutboxInterval time.Duration `env:"QUORUM_OUTBOX_INTERVAL" envDefault:"2s"`
	OutboxBatch    int           `env:"QUORUM_OUTBOX_BATCH"    envDefault:"100"`
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work together.
func (c Server) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if len(c.Kafka.Brokers) > 0 && c.Database.URL == "" {
		return fmt.Errorf("kafka publishing requires QUORUM_DATABASE_URL for the outbox")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis lock ttl must be positive")
	}
	if c.Kafka.OutboxBatch <= 0 {
		return fmt.Errorf("outbox batch must be positive")
	}
	return nil
}

// UsesPostgres reports whether stores should be backed by PostgreSQL.
func (c Server) UsesPostgres() bool {
	return c.Database.URL != ""
}
