package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/telemetry"
)

const (
	insertRetryInitial = time.Second
	insertRetryMax     = 10 * time.Second
	insertMaxAttempts  = 5

	// A failed rollback leaves orphaned rows behind, so rollback
	// deletes retry until they succeed or the context ends.
	rollbackRetryMax = 5 * time.Minute
)

// Store issues batched inserts and run-scoped deletes against one
// ClickHouse connection.
type Store struct {
	conn    Conn
	metrics *telemetry.Metrics
	log     *zap.Logger

	retryInitial time.Duration
	retryMax     time.Duration
	rollbackMax  time.Duration
}

// New wraps a connection.
func New(conn Conn, metrics *telemetry.Metrics, log *zap.Logger) *Store {
	return &Store{
		conn:         conn,
		metrics:      metrics,
		log:          log.Named("store"),
		retryInitial: insertRetryInitial,
		retryMax:     insertRetryMax,
		rollbackMax:  rollbackRetryMax,
	}
}

// Insert writes rows into table with runID stamped on every row. The
// whole batch is retried up to five times on failure.
func (s *Store) Insert(ctx context.Context, table string, columns []string, runID uuid.UUID, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s (run_id, %s)", table, strings.Join(columns, ", "))

	op := func() error {
		batch, err := s.conn.PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("store: prepare %s: %w", table, err)
		}
		for _, row := range rows {
			if err := batch.Append(append([]any{runID.String()}, row...)...); err != nil {
				return fmt.Errorf("store: append %s: %w", table, err)
			}
		}
		return batch.Send()
	}

	start := time.Now()
	if err := backoff.Retry(op, s.insertBackoff(ctx)); err != nil {
		return fmt.Errorf("store: insert into %s: %w", table, err)
	}
	s.metrics.BatchInsertSecs.Observe(time.Since(start).Seconds())
	s.metrics.RowsInserted.WithLabelValues(table).Add(float64(len(rows)))
	s.log.Debug("batch inserted", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// InsertStructs projects row structs to columns by field name and
// inserts them. rows elements must share one struct type.
func (s *Store) InsertStructs(ctx context.Context, table string, runID uuid.UUID, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	columns := columnsOf(reflect.TypeOf(rows[0]))
	flat := make([][]any, 0, len(rows))
	for _, row := range rows {
		flat = append(flat, valuesOf(reflect.ValueOf(row)))
	}
	return s.Insert(ctx, table, columns, runID, flat)
}

// DeleteRun removes every row a run wrote to table. It retries with
// capped backoff until the delete lands or ctx ends.
func (s *Store) DeleteRun(ctx context.Context, table string, runID uuid.UUID) error {
	op := func() error {
		err := s.conn.Exec(ctx,
			fmt.Sprintf("ALTER TABLE %s DELETE WHERE run_id = ?", table),
			runID.String())
		if err != nil {
			s.log.Warn("rollback delete failed, retrying",
				zap.String("table", table),
				zap.String("run_id", runID.String()),
				zap.Error(err))
		}
		return err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.retryInitial
	expo.MaxInterval = s.rollbackMax
	expo.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return fmt.Errorf("store: rollback %s run %s: %w", table, runID, err)
	}
	s.log.Info("run rows deleted", zap.String("table", table), zap.String("run_id", runID.String()))
	return nil
}

func (s *Store) insertBackoff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.retryInitial
	expo.MaxInterval = s.retryMax
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, insertMaxAttempts-1), ctx)
}
