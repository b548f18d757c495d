package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Identity store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Mail transports.
const (
	MailWriter = "writer"
	MailAMQP   = "amqp"
)

// RedisInMemory as the Redis address starts an embedded server. Data is lost
// on exit.
const RedisInMemory = "memory"

// ServerConfig is the process-level configuration shared by every command.
type ServerConfig struct {
	Addr            string        `env:"GOSOCIALAUTH_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"GOSOCIALAUTH_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RedisAddr     string `env:"GOSOCIALAUTH_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"GOSOCIALAUTH_REDIS_PASSWORD"`
	RedisDB       int    `env:"GOSOCIALAUTH_REDIS_DB" envDefault:"0"`

	Store            string `env:"GOSOCIALAUTH_STORE" envDefault:"memory"`
	SQLitePath       string `env:"GOSOCIALAUTH_SQLITE_PATH" envDefault:"gosocialauth.db"`
	PostgresDSN      string `env:"GOSOCIALAUTH_POSTGRES_DSN"`
	PostgresMaxConns int32  `env:"GOSOCIALAUTH_POSTGRES_MAX_CONNS" envDefault:"10"`
	AutoMigrate      bool   `env:"GOSOCIALAUTH_AUTO_MIGRATE" envDefault:"true"`

	Mail      string `env:"GOSOCIALAUTH_MAIL" envDefault:"writer"`
	AMQPURL   string `env:"GOSOCIALAUTH_AMQP_URL"`
	AMQPQueue string `env:"GOSOCIALAUTH_AMQP_QUEUE" envDefault:"gosocialauth.mail"`

	LogLevel  string `env:"GOSOCIALAUTH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GOSOCIALAUTH_LOG_FORMAT" envDefault:"json"`

	TrustProxy    bool          `env:"GOSOCIALAUTH_TRUST_PROXY"`
	ThrottleRPS   float64       `env:"GOSOCIALAUTH_HTTP_RPS" envDefault:"0"`
	ThrottleBurst int           `env:"GOSOCIALAUTH_HTTP_BURST" envDefault:"10"`
	ThrottleIdle  time.Duration `env:"GOSOCIALAUTH_HTTP_THROTTLE_IDLE" envDefault:"10m"`
	PopupOrigin   string        `env:"GOSOCIALAUTH_POPUP_ORIGIN"`
}

// LoadServerConfig reads and validates the process configuration.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.Mail = strings.ToLower(strings.TrimSpace(cfg.Mail))
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate checks the backend selections and their required settings.
func (c ServerConfig) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("GOSOCIALAUTH_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("GOSOCIALAUTH_POSTGRES_DSN is required for the postgres store")
		}
		if c.PostgresMaxConns <= 0 {
			return errors.New("GOSOCIALAUTH_POSTGRES_MAX_CONNS must be > 0")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", c.Store)
	}

	switch c.Mail {
	case MailWriter:
	case MailAMQP:
		if strings.TrimSpace(c.AMQPURL) == "" {
			return errors.New("GOSOCIALAUTH_AMQP_URL is required for amqp mail")
		}
	default:
		return fmt.Errorf("unknown mail transport %q (want writer or amqp)", c.Mail)
	}

	if c.ThrottleRPS < 0 || c.ThrottleBurst < 0 {
		return errors.New("http throttle rate and burst must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("GOSOCIALAUTH_SHUTDOWN_TIMEOUT must be > 0")
	}
	return nil
}
