package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/telemetry"
	"github.com/riftdata/pipeline/internal/tracing"
)

const (
	failureBackoffStart = time.Minute
	failureBackoffCap   = 15 * time.Minute
)

// Runner drives the stage sequence on a fixed interval. A failed cycle
// backs off starting at one minute, doubling to fifteen; the next
// successful cycle resets it.
type Runner struct {
	stages   []Stage
	interval time.Duration
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	log      *zap.Logger

	wake chan struct{}

	backoffStart time.Duration
	backoffCap   time.Duration
}

// NewRunner builds a runner over the stage sequence.
func NewRunner(stages []Stage, interval time.Duration, metrics *telemetry.Metrics, log *zap.Logger) *Runner {
	return &Runner{
		stages:       stages,
		interval:     interval,
		metrics:      metrics,
		tracer:       tracing.Tracer("pipeline"),
		log:          log.Named("runner"),
		wake:         make(chan struct{}, 1),
		backoffStart: failureBackoffStart,
		backoffCap:   failureBackoffCap,
	}
}

// Wake cuts the current sleep short so a new cycle starts immediately.
// Safe to call from any goroutine; extra wakes coalesce.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run loops until ctx ends. In-flight stages finish before exit.
func (r *Runner) Run(ctx context.Context) error {
	backoff := r.backoffStart

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cycleStart := time.Now()
		err := r.runCycle(ctx)

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.log.Error("cycle failed, backing off",
				zap.Duration("backoff", backoff), zap.Error(err))
			if !r.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, r.backoffCap)
		default:
			backoff = r.backoffStart
			sleepFor := r.interval - time.Since(cycleStart)
			r.log.Info("cycle done", zap.Duration("sleep", sleepFor))
			if !r.sleep(ctx, sleepFor) {
				return ctx.Err()
			}
		}
	}
}

func (r *Runner) runCycle(ctx context.Context) error {
	for _, stage := range r.stages {
		if err := r.runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage) error {
	spanCtx, span := tracing.StartSpan(ctx, r.tracer, "stage."+stage.Name(),
		attribute.String("stage", stage.Name()))
	defer span.End()

	start := time.Now()
	err := stage.Run(spanCtx)
	elapsed := time.Since(start)

	r.metrics.StageDurationSec.WithLabelValues(stage.Name()).Observe(elapsed.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
		tracing.RecordError(spanCtx, err)
	}
	r.metrics.StageRunsTotal.WithLabelValues(stage.Name(), outcome).Inc()

	r.log.Info("stage finished",
		zap.String("stage", stage.Name()),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed))
	return err
}

// sleep waits for d, an external wake, or ctx; it reports whether the
// runner should continue.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.wake:
		r.log.Info("sleep interrupted by trigger")
		return true
	case <-ctx.Done():
		return false
	}
}
