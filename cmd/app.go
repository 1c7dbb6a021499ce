package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fabricguide/internal/api"
	"fabricguide/internal/config"
	"fabricguide/internal/logging"
	"fabricguide/internal/presentation"
	"fabricguide/internal/redis"
	"fabricguide/internal/service/ai"
	"fabricguide/internal/service/assistant"
	"fabricguide/internal/service/guide"
	"fabricguide/internal/storage"
	"fabricguide/internal/worker"
)

// app holds the wired services shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *sql.DB
	cache     *redis.Client
	assistant *assistant.Service
	registry  *ai.Registry
	manager   *worker.Manager
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	a.db, err = storage.Open(cfg.Storage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(a.db, cfg.Storage.Driver); err != nil {
		a.close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.cache, err = redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	a.assistant = assistant.NewService(a.db, logger)
	a.registry = ai.NewRegistry(cfg, logger)
	a.manager = worker.NewManager(a.assistant, guide.New(), a.registry, worker.Options{
		Workers:    cfg.Workers,
		ReplyDelay: cfg.Guide.ReplyDelay,
		Cache:      a.cache,
		Logger:     logger,
	})
	logger.Info("services ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", a.cache != nil),
		zap.String("mode", cfg.Guide.Mode),
	)
	return a, nil
}

func (a *app) router(exporter api.Exporter) (*gin.Engine, error) {
	gin.SetMode(a.cfg.Server.GinMode)
	renderer, err := presentation.NewRenderer()
	if err != nil {
		return nil, err
	}
	handler := api.NewHandler(a.assistant, a.manager, renderer, exporter, a.cfg, a.logger)
	return api.NewRouter(handler), nil
}

func (a *app) close() {
	if a.manager != nil {
		a.manager.Close()
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
