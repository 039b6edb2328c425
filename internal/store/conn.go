// Package store persists crawler output and parsed match tables in
// ClickHouse, keyed by run_id so a failed stage can be rolled back.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/riftdata/pipeline/internal/config"
)

// Batch is the slice of driver.Batch the store uses.
type Batch interface {
	Append(v ...any) error
	Send() error
}

// Rows is the slice of driver.Rows the store uses.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Conn narrows the native ClickHouse connection to what the store
// needs; tests substitute an in-memory fake.
type Conn interface {
	PrepareBatch(ctx context.Context, query string) (Batch, error)
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Close() error
}

// chConn adapts driver.Conn to the narrow interface.
type chConn struct {
	conn driver.Conn
}

// Open dials ClickHouse over the native protocol.
func Open(cfg config.Store) (Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("store: ping clickhouse: %w", err)
	}
	return &chConn{conn: conn}, nil
}

func (c *chConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (c *chConn) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

func (c *chConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *chConn) Close() error {
	return c.conn.Close()
}
