package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/geo"
	"github.com/riftdata/pipeline/internal/league"
)

const (
	playersTable = "players"

	playerBatchSize     = 20_000
	playerFlushInterval = 5 * time.Second
)

var playerColumns = []string{
	"puuid", "queue_type", "tier", "division",
	"wins", "losses", "shard", "super_shard", "updated_at",
}

func playerRow(e league.Entry, ts int64) []any {
	return []any{
		e.PUUID, string(e.Queue), e.Tier, e.Division,
		e.Wins, e.Losses, string(e.Shard), string(e.SuperShard), ts,
	}
}

// InsertPlayers drains the entry stream into batched inserts, flushing
// on size or every five seconds, whichever comes first.
func (s *Store) InsertPlayers(ctx context.Context, runID uuid.UUID, ts int64, entries <-chan league.Entry) error {
	batch := make([][]any, 0, playerBatchSize)
	ticker := time.NewTicker(playerFlushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.Insert(ctx, playersTable, playerColumns, runID, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return flush()
			}
			batch = append(batch, playerRow(e, ts))
			if len(batch) >= playerBatchSize {
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

// RollbackPlayerRun deletes every players row the run inserted.
func (s *Store) RollbackPlayerRun(ctx context.Context, runID uuid.UUID) error {
	return s.DeleteRun(ctx, playersTable, runID)
}

// PlayerKey identifies one player/queue crawl target.
type PlayerKey struct {
	PUUID string
	Queue geo.Queue
	Shard geo.Shard
}

// LoadPlayerKeys reads the distinct player universe, one row per
// (puuid, queue).
func (s *Store) LoadPlayerKeys(ctx context.Context) ([]PlayerKey, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT puuid, queue_type, shard FROM players LIMIT 1 BY puuid, queue_type")
	if err != nil {
		return nil, fmt.Errorf("store: load player keys: %w", err)
	}
	defer rows.Close()

	var keys []PlayerKey
	for rows.Next() {
		var puuid, queue, shard string
		if err := rows.Scan(&puuid, &queue, &shard); err != nil {
			return nil, fmt.Errorf("store: scan player key: %w", err)
		}
		keys = append(keys, PlayerKey{PUUID: puuid, Queue: geo.Queue(queue), Shard: geo.Shard(shard)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load player keys: %w", err)
	}
	s.log.Info("player universe loaded", zap.Int("players", len(keys)))
	return keys, nil
}
