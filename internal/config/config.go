package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	DBDriver string `validate:"oneof=postgres sqlite"`

	PostgresHost     string `validate:"required_if=DBDriver postgres"`
	PostgresPort     string `validate:"numeric"`
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string `validate:"required_if=DBDriver postgres"`
	PostgresSSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`

	SQLitePath string `validate:"required_if=DBDriver sqlite"`

	DBMaxIdle int `validate:"min=1"`
	DBMaxOpen int `validate:"min=1,gtefield=DBMaxIdle"`

	HTTPAddr         string `validate:"required"`
	TelegramBotToken string
	Timezone         string
	LogLevel         string `validate:"oneof=debug info warn error"`
}

// LoadDotEnv copies .env (or envFiles) into the process environment without
// overriding variables that are already set. A missing file is not fatal for
// the caller; the error is returned so it can be logged once a logger exists.
func LoadDotEnv(envFiles ...string) error {
	return godotenv.Load(envFiles...)
}

// Load builds the Config from the process environment.
func Load() (*Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	getInt := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s (value: %q): %w", key, raw, err))
			return def
		}
		return n
	}

	cfg := &Config{
		DBDriver:         strings.ToLower(get("DB_DRIVER", "postgres")),
		PostgresHost:     get("POSTGRES_HOST", ""),
		PostgresPort:     get("POSTGRES_PORT", "5432"),
		PostgresUser:     get("POSTGRES_USER", ""),
		PostgresPassword: getenv("POSTGRES_PASSWORD"),
		PostgresDB:       get("POSTGRES_DB", ""),
		PostgresSSLMode:  get("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       get("SQLITE_PATH", "mnemosyne.db"),
		DBMaxIdle:        getInt("DB_MAX_IDLE", 10),
		DBMaxOpen:        getInt("DB_MAX_OPEN", 20),
		HTTPAddr:         get("HTTP_ADDR", ":8000"),
		TelegramBotToken: get("TELEGRAM_BOT_TOKEN", ""),
		Timezone:         get("TIMEZONE", "UTC"),
		LogLevel:         strings.ToLower(get("LOG_LEVEL", "info")),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("read config: %w", errors.Join(errs...))
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

func (c *Config) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
