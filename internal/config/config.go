package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const DefaultPath = "configs/config.yaml"

var (
	ErrEmptyBotToken   = errors.New("telegram bot token is required")
	ErrEmptyDBPassword = errors.New("database password is required")
	ErrInvalidCount    = errors.New("joke count must be positive")
	ErrUnknownBackend  = errors.New("unknown storage backend")
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendNATS     = "nats"
)

type Config struct {
	App      AppConfig      `yaml:"app" env-prefix:"APP_"`
	Jokes    JokesConfig    `yaml:"jokes" env-prefix:"JOKES_"`
	Source   SourceConfig   `yaml:"source" env-prefix:"SOURCE_"`
	Storage  StorageConfig  `yaml:"storage" env-prefix:"STORAGE_"`
	Database DatabaseConfig `yaml:"database" env-prefix:"DB_"`
	SQLite   SQLiteConfig   `yaml:"sqlite" env-prefix:"SQLITE_"`
	NATS     NATSConfig     `yaml:"nats" env-prefix:"NATS_"`
	Bot      BotConfig      `yaml:"bot" env-prefix:"BOT_"`
	Health   HealthConfig   `yaml:"health" env-prefix:"HEALTH_"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"NAME" env-default:"jokeboard"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"production"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogFile     string `yaml:"log_file" env:"LOG_FILE"`
}

type JokesConfig struct {
	Count         int    `yaml:"count" env:"COUNT" env-default:"5"`
	MaxAttempts   int    `yaml:"max_attempts" env:"MAX_ATTEMPTS" env-default:"0"`
	CollectionKey string `yaml:"collection_key" env:"COLLECTION_KEY" env-default:"jokes"`
}

type SourceConfig struct {
	URL         string        `yaml:"url" env:"URL" env-default:"https://icanhazdadjoke.com/"`
	UserAgent   string        `yaml:"user_agent" env:"USER_AGENT" env-default:"jokeboard/1.0 (https://github.com/jokeboard/jokeboard)"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"10s"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" env-default:"file"`
	Dir     string `yaml:"dir" env:"DIR" env-default:".jokeboard"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PORT" env-default:"5432"`
	User           string `yaml:"user" env:"USER" env-default:"jokeboard"`
	Password       string `yaml:"password" env:"PASSWORD"`
	Name           string `yaml:"name" env:"NAME" env-default:"jokeboard"`
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS" env-default:"5"`
	MinConnections int    `yaml:"min_connections" env:"MIN_CONNECTIONS" env-default:"1"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH" env-default:"jokeboard.db"`
}

type NATSConfig struct {
	URL    string `yaml:"url" env:"URL" env-default:"nats://localhost:4222"`
	Bucket string `yaml:"bucket" env:"BUCKET" env-default:"JOKEBOARD"`
}

type BotConfig struct {
	Token     string `yaml:"token" env:"TOKEN"`
	ParseMode string `yaml:"parse_mode" env:"PARSE_MODE" env-default:"HTML"`
}

type HealthConfig struct {
	Port     int    `yaml:"port" env:"PORT" env-default:"8080"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT" env-default:"/healthz"`
}

// Read loads the YAML file at path (or CONFIG_PATH, or DefaultPath) when it
// exists and applies environment overrides on top. A missing file is not an
// error: defaults and the environment are enough to run the viewer.
func Read(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	return &cfg, nil
}

// Load is Read followed by Validate.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Jokes.Count <= 0 {
		return ErrInvalidCount
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendNATS:
	case BackendPostgres:
		if c.Database.Password == "" {
			return ErrEmptyDBPassword
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}

	return nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if c.Bot.Token == "" {
		return ErrEmptyBotToken
	}
	return nil
}
