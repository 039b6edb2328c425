// The pipeline binary runs the recurring collection cycle and the HTTP
// trigger, health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftdata/pipeline/internal/api"
	"github.com/riftdata/pipeline/internal/config"
	"github.com/riftdata/pipeline/internal/fetch"
	"github.com/riftdata/pipeline/internal/league"
	"github.com/riftdata/pipeline/internal/matchdata"
	"github.com/riftdata/pipeline/internal/matchids"
	"github.com/riftdata/pipeline/internal/parse"
	"github.com/riftdata/pipeline/internal/pipeline"
	"github.com/riftdata/pipeline/internal/ratelimit"
	"github.com/riftdata/pipeline/internal/store"
	"github.com/riftdata/pipeline/internal/telemetry"
	"github.com/riftdata/pipeline/internal/tracing"
)

const shutdownGrace = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("pipeline exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := tracing.Init(os.Getenv("JAEGER_ENDPOINT")); err != nil {
		logger.Warn("tracing init failed, continuing without traces", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	conn, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer conn.Close()
	st := store.New(conn, metrics, logger)

	limiters := ratelimit.NewRegistry(metrics.ExportLimiterRate)
	client := fetch.NewClient(cfg.APIKey, cfg.RateLimitCalls, cfg.RateLimitPeriod, limiters, metrics, logger)
	endpoints := fetch.NewEndpoints()

	stages := []pipeline.Stage{
		pipeline.NewPlayersStage(
			league.NewCrawler(client, endpoints, logger), st,
			league.DefaultEliteBounds(), league.DefaultBracketBounds(), logger),
		pipeline.NewMatchIDStage(
			matchids.NewCrawler(client, logger), endpoints, st, logger),
		pipeline.NewMatchDataStage(
			matchdata.NewStreamer(client, endpoints, logger), st,
			parse.NewNonTimelineParser(logger, cfg.StrictSchema),
			parse.NewTimelineParser(logger, cfg.StrictSchema),
			parse.NewDetector(logger), logger),
	}
	runner := pipeline.NewRunner(stages, cfg.PipelineInterval, metrics, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewServer(runner, registry, logger).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("pipeline starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Duration("interval", cfg.PipelineInterval),
		zap.Bool("strict_schema", cfg.StrictSchema))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := runner.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("pipeline stopped")
	return err
}
