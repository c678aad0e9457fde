package config

import (
	"fmt"
	"time"

	"github.com/nomadride/surge-engine/pkg/configparser"
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Server   ServerConfig
		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Redis    RedisConfig
		Auth     Auth
		Engine   EngineConfig
		Logger   LoggerConfig
	}

	ServerConfig struct {
		Port string `env:"SERVER_PORT" default:"3000"`
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"surge_user"`
		Password string `env:"DATABASE_PASSWORD" default:"surge_pass"`
		Database string `env:"DATABASE_DATABASE" default:"surge_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	RedisConfig struct {
		Host     string `env:"REDIS_HOST" default:"localhost"`
		Port     string `env:"REDIS_PORT" default:"6379"`
		Password string `env:"REDIS_PASSWORD" default:""`
		DB       int    `env:"REDIS_DB" default:"0"`
	}

	Auth struct {
		JWTSecret string `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
	}

	// EngineConfig holds fallback pricing defaults used until the first
	// settings row is loaded from the database.
	EngineConfig struct {
		EvaluationInterval  time.Duration `env:"ENGINE_EVALUATION_INTERVAL" default:"30s"`
		MaxGlobalMultiplier float64       `env:"ENGINE_MAX_GLOBAL_MULTIPLIER" default:"3.0"`
	}

	LoggerConfig struct {
		Level string `env:"LOGGER_LEVEL" default:"DEBUG"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}
