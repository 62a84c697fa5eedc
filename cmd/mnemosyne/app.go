package main

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/mnemosyne/internal/config"
	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/internal/repository"
	"github.com/romanzh1/mnemosyne/internal/service"
	"github.com/romanzh1/mnemosyne/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type app struct {
	cfg  *config.Config
	loc  *time.Location
	repo *repository.DB
}

// newApp loads the config, installs the global logger and opens the store.
// The caller must defer app.Close().
func newApp() (*app, error) {
	cfg, loc, err := loadConfig()
	if err != nil {
		return nil, err
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, loc: loc, repo: repo}, nil
}

// loadConfig reads the environment and installs the global logger. Problems
// with .env are logged only after that, so they reach the configured logger.
func loadConfig(opts ...zap.Option) (*config.Config, *time.Location, error) {
	envErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	loc, err := utils.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone (name: %s): %w", cfg.Timezone, err)
	}

	if err := initLogger(cfg.ZapLevel(), loc, opts...); err != nil {
		return nil, nil, err
	}

	if envErr != nil {
		zap.L().Debug("load .env file", zap.Error(envErr))
	}

	return cfg, loc, nil
}

func initLogger(level zapcore.Level, loc *time.Location, opts ...zap.Option) error {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(level)
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.EncoderConfig.TimeKey = "timestamp"
	// Время в логах показываем в часовом поясе пользователя
	logConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(time.RFC3339))
	}

	logger, err := logConfig.Build(opts...)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	zap.ReplaceGlobals(logger)
	zap.S().Debug("logger initialized")
	return nil
}

func openRepository(cfg *config.Config) (*repository.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		repo, err := repository.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open SQLite (path: %s): %w", cfg.SQLitePath, err)
		}
		return repo, nil
	default:
		repo, err := repository.NewPostgres(cfg.PostgresDSN(), cfg.DBMaxIdle, cfg.DBMaxOpen)
		if err != nil {
			return nil, fmt.Errorf("connect to PostgreSQL (host: %s): %w", cfg.PostgresHost, err)
		}
		return repo, nil
	}
}

// service brings the schema up to date and returns the service over it.
func (a *app) service(ctx context.Context) (*service.Service, error) {
	version, err := a.repo.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	zap.L().Debug("schema ready", zap.Int64("version", version))

	return service.NewService(a.repo, models.RealClock{}, models.UUIDGenerator{}, a.loc), nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		zap.L().Warn("close repository", zap.Error(err))
	}
	_ = zap.L().Sync()
}
