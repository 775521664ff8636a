package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/atlas-edu/permitd/internal/app"
	"github.com/atlas-edu/permitd/internal/docstore"
	"github.com/atlas-edu/permitd/internal/eventsink"
	"github.com/atlas-edu/permitd/internal/observability"
	"github.com/atlas-edu/permitd/internal/permit"
	"github.com/atlas-edu/permitd/internal/platform/cache"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	var sink permit.DecisionSink
	switch cfg.PermitEventSink {
	case "asynq":
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		sink = eventsink.NewAsynqSink(client)
	case "redis":
		sink = eventsink.NewRedisSink(redisClient, cfg.PermitEventTTL)
	default:
		sink = permit.NoopSink{}
	}

	checkCache := cache.NewTTL[any](cfg.PermitCacheTTL, cfg.PermitSweepEvery)
	defer checkCache.Stop()

	engine := permit.New(logger, permit.Config{
		Cache:       checkCache,
		Sink:        observability.NewDecisionSink(metrics, sink),
		Mode:        permit.ParseLogMode(cfg.PermitLogMode),
		Environment: cfg.PermitEnvironment,
	})

	store := docstore.New(redisClient, cfg.PermitDocumentKey)
	bootstrapDocument(ctx, logger, engine, store)

	handler := permit.NewHandler(logger, engine, store)
	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		PermitHandler: handler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("permitd listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// bootstrapDocument loads the stored permission document, if any. A
// missing or rejected document is not fatal: the engine stays unloaded and
// every check fails closed until a valid document is submitted.
func bootstrapDocument(ctx context.Context, logger *slog.Logger, engine *permit.Engine, store *docstore.Store) {
	data, err := store.Get(ctx)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			logger.Warn("no permission document published yet")
		} else {
			logger.Error("fetch permission document", slog.Any("error", err))
		}
		return
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Error("decode permission document", slog.Any("error", err))
		return
	}
	result := engine.LoadPermissions(raw)
	if !result.Success {
		logger.Error("stored permission document rejected", slog.Any("errors", result.Errors))
		return
	}
	for _, warning := range result.Warnings {
		logger.Warn("permission document warning", slog.String("warning", warning))
	}
}
