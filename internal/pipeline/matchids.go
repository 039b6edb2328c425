package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftdata/pipeline/internal/fetch"
	"github.com/riftdata/pipeline/internal/geo"
	"github.com/riftdata/pipeline/internal/matchids"
	"github.com/riftdata/pipeline/internal/store"
)

const idBatchBuffer = 64

// MatchIDStore is the store slice the match-id stage drives.
type MatchIDStore interface {
	LoadPlayerKeys(ctx context.Context) ([]store.PlayerKey, error)
	LoadCollectedPUUIDs(ctx context.Context) (map[string]struct{}, error)
	LoadCollectionTimestamp(ctx context.Context) (int64, bool, error)
	InsertPUUIDs(ctx context.Context, runID uuid.UUID, puuids []string) error
	InsertMatchIDBatches(ctx context.Context, runID uuid.UUID, batches <-chan []string) error
	InsertCollectionTimestamp(ctx context.Context, runID uuid.UUID, ts int64) error
	DeleteOldTimestamps(ctx context.Context, keep uuid.UUID) error
	RollbackMatchIDRun(ctx context.Context, runID uuid.UUID) error
}

// MatchIDStage crawls every known player's new match ids and persists
// them together with the crawl watermark.
type MatchIDStage struct {
	crawler   *matchids.Crawler
	endpoints fetch.Endpoints
	store     MatchIDStore
	log       *zap.Logger
}

// NewMatchIDStage builds the match-id stage.
func NewMatchIDStage(crawler *matchids.Crawler, endpoints fetch.Endpoints, st MatchIDStore, log *zap.Logger) *MatchIDStage {
	return &MatchIDStage{
		crawler:   crawler,
		endpoints: endpoints,
		store:     st,
		log:       log.Named("stage.matchids"),
	}
}

func (s *MatchIDStage) Name() string { return "match_ids" }

// buildInitialStates derives one crawl state per (player, queue).
// Players covered by the previous crawl resume from its watermark;
// everyone else starts from the beginning of time.
func buildInitialStates(endpoints fetch.Endpoints, keys []store.PlayerKey, collected map[string]struct{}, collectedTS int64) []matchids.PlayerState {
	states := make([]matchids.PlayerState, 0, len(keys))
	for _, key := range keys {
		var startTime int64
		if _, ok := collected[key.PUUID]; ok && collectedTS > 0 {
			startTime = collectedTS
		}
		super := geo.SuperShardOf(key.Shard)
		states = append(states, matchids.PlayerState{
			PUUID:      key.PUUID,
			Queue:      key.Queue,
			SuperShard: super,
			BaseURL:    endpoints.MatchIDsByPUUID(super, key.PUUID, key.Queue, startTime),
		})
	}
	return states
}

// dedupe drops match ids already seen earlier in this run. Batches
// that end up empty are swallowed.
func dedupe(ctx context.Context, in <-chan []string, out chan<- []string) error {
	seen := make(map[string]struct{})
	for batch := range in {
		fresh := make([]string, 0, len(batch))
		for _, id := range batch {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fresh = append(fresh, id)
		}
		if len(fresh) == 0 {
			continue
		}
		select {
		case out <- fresh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run loads the player universe, crawls ids, and persists
// puuids, ids, then the new watermark. Any failure rolls the whole run
// back; on success older watermarks are pruned.
func (s *MatchIDStage) Run(ctx context.Context) error {
	run := NewRunContext(s.Name())
	s.log.Info("run start", zap.String("run_id", run.RunID.String()))

	keys, err := s.store.LoadPlayerKeys(ctx)
	if err != nil {
		return err
	}
	collected, err := s.store.LoadCollectedPUUIDs(ctx)
	if err != nil {
		return err
	}
	collectedTS, _, err := s.store.LoadCollectionTimestamp(ctx)
	if err != nil {
		return err
	}

	states := buildInitialStates(s.endpoints, keys, collected, collectedTS)
	puuids := make([]string, 0, len(keys))
	for _, key := range keys {
		puuids = append(puuids, key.PUUID)
	}

	raw := make(chan []string, idBatchBuffer)
	deduped := make(chan []string, idBatchBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(raw)
		return s.crawler.Stream(gctx, states, run.TS, raw)
	})
	g.Go(func() error {
		defer close(deduped)
		return dedupe(gctx, raw, deduped)
	})
	g.Go(func() error {
		if err := s.store.InsertPUUIDs(gctx, run.RunID, puuids); err != nil {
			return err
		}
		if err := s.store.InsertMatchIDBatches(gctx, run.RunID, deduped); err != nil {
			return err
		}
		return s.store.InsertCollectionTimestamp(gctx, run.RunID, run.TS)
	})

	if err := g.Wait(); err != nil {
		s.log.Error("run failed, rolling back", zap.String("run_id", run.RunID.String()), zap.Error(err))
		if rbErr := s.store.RollbackMatchIDRun(ctx, run.RunID); rbErr != nil {
			s.log.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	return s.store.DeleteOldTimestamps(ctx, run.RunID)
}
