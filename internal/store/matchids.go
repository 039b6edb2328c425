package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/flow"
)

const (
	matchIDsTable      = "matchids"
	matchIDPUUIDsTable = "matchid_puuids"
	timestampsTable    = "data_timestamps"

	// Named timestamp row marking when the puuid universe was last
	// crawled for match ids.
	puuidTimestampName = "matchids_puuids_ts"

	puuidInsertBatch    = 50_000
	matchIDBufferSize   = 200_000
	matchIDFlushTimeout = time.Second
)

// matchIDRollbackTables lists every table the match-id stage writes.
var matchIDRollbackTables = []string{timestampsTable, matchIDPUUIDsTable, matchIDsTable}

// LoadCollectionTimestamp reads the last "puuids collected" timestamp.
// A store with no timestamp row yet yields ok=false.
func (s *Store) LoadCollectionTimestamp(ctx context.Context) (ts int64, ok bool, err error) {
	rows, err := s.conn.Query(ctx,
		"SELECT stored_at FROM data_timestamps WHERE name = ? ORDER BY stored_at DESC LIMIT 1",
		puuidTimestampName)
	if err != nil {
		return 0, false, fmt.Errorf("store: load collection timestamp: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	if err := rows.Scan(&ts); err != nil {
		return 0, false, fmt.Errorf("store: scan collection timestamp: %w", err)
	}
	return ts, true, rows.Err()
}

// LoadCollectedPUUIDs reads the set of players already covered by the
// last match-id crawl.
func (s *Store) LoadCollectedPUUIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, "SELECT puuid FROM matchid_puuids")
	if err != nil {
		return nil, fmt.Errorf("store: load collected puuids: %w", err)
	}
	defer rows.Close()

	collected := make(map[string]struct{})
	for rows.Next() {
		var puuid string
		if err := rows.Scan(&puuid); err != nil {
			return nil, fmt.Errorf("store: scan collected puuid: %w", err)
		}
		collected[puuid] = struct{}{}
	}
	return collected, rows.Err()
}

// LoadMatchIDs reads every known match id.
func (s *Store) LoadMatchIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, "SELECT matchid FROM matchids")
	if err != nil {
		return nil, fmt.Errorf("store: load match ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertPUUIDs records the player universe this run crawled.
func (s *Store) InsertPUUIDs(ctx context.Context, runID uuid.UUID, puuids []string) error {
	for _, chunk := range flow.Chunk(puuids, puuidInsertBatch) {
		rows := make([][]any, 0, len(chunk))
		for _, p := range chunk {
			rows = append(rows, []any{p})
		}
		if err := s.Insert(ctx, matchIDPUUIDsTable, []string{"puuid"}, runID, rows); err != nil {
			return err
		}
	}
	return nil
}

// InsertMatchIDBatches drains id batches into buffered inserts,
// flushing at 200k rows or after one second of quiet.
func (s *Store) InsertMatchIDBatches(ctx context.Context, runID uuid.UUID, batches <-chan []string) error {
	buf := make([][]any, 0, matchIDBufferSize)
	ticker := time.NewTicker(matchIDFlushTimeout)
	defer ticker.Stop()

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := s.Insert(ctx, matchIDsTable, []string{"matchid"}, runID, buf); err != nil {
			return err
		}
		buf = buf[:0]
		return nil
	}

	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				return flush()
			}
			for _, id := range batch {
				buf = append(buf, []any{id})
			}
			if len(buf) >= matchIDBufferSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// InsertCollectionTimestamp upserts the named timestamp row for this
// run.
func (s *Store) InsertCollectionTimestamp(ctx context.Context, runID uuid.UUID, ts int64) error {
	return s.Insert(ctx, timestampsTable, []string{"name", "stored_at"}, runID,
		[][]any{{puuidTimestampName, ts}})
}

// DeleteOldTimestamps drops timestamp rows from earlier runs so only
// the latest remains.
func (s *Store) DeleteOldTimestamps(ctx context.Context, keep uuid.UUID) error {
	err := s.conn.Exec(ctx,
		"ALTER TABLE data_timestamps DELETE WHERE name = ? AND run_id != ?",
		puuidTimestampName, keep.String())
	if err != nil {
		return fmt.Errorf("store: delete old timestamps: %w", err)
	}
	return nil
}

// RollbackMatchIDRun deletes everything the match-id stage wrote under
// runID, across all three tables.
func (s *Store) RollbackMatchIDRun(ctx context.Context, runID uuid.UUID) error {
	s.log.Warn("rolling back match-id run", zap.String("run_id", runID.String()))
	for _, table := range matchIDRollbackTables {
		if err := s.DeleteRun(ctx, table, runID); err != nil {
			return err
		}
	}
	return nil
}
