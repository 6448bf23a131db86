package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string        `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string        `env:"RABBITMQ_URL,required=true"`
	RedisURL          string        `env:"REDIS_URL,required=true"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=16"`
	APIPort           int           `env:"API_PORT,default=8080"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	// MaxRetryCount is loaded but not read by any component: the retry budget
	// of a notification is its own maxRetryCount, which falls back to
	// domain.DefaultMaxRetryCount (5) when the create request omits it.
	MaxRetryCount     int          `env:"MAX_RETRY_COUNT,default=5"`
	InitialRetryDelay time.Duration `env:"INITIAL_RETRY_DELAY,default=1s"`
	MaxRetryDelay     time.Duration `env:"MAX_RETRY_DELAY,default=1h"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT,default=30s"`
	SweeperInterval   time.Duration `env:"SWEEPER_INTERVAL,default=30s"`

	// RetryAdminTokenHash is a bcrypt hash checked against the bearer token
	// on the operator-triggered /retry and cancel endpoints. Optional: when
	// unset, those endpoints are not gated.
	RetryAdminTokenHash string `env:"RETRY_ADMIN_TOKEN_HASH"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
