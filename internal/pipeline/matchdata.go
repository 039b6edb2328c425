package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/matchdata"
	"github.com/riftdata/pipeline/internal/parse"
)

// MatchDataStore is the store slice the match-data stage drives.
type MatchDataStore interface {
	LoadPendingMatchIDs(ctx context.Context) ([]string, error)
	PersistNonTimeline(ctx context.Context, runID uuid.UUID, tables parse.NonTimelineTables) error
	PersistTimeline(ctx context.Context, runID uuid.UUID, tables parse.TimelineTables) error
	InsertCollectedMatchIDs(ctx context.Context, runID uuid.UUID, ids []string) error
	RollbackMatchDataRun(ctx context.Context, runID uuid.UUID) error
}

// MatchDataStage fetches pending match payloads on both streams,
// parses them, scans for schema drift, and persists every table slice
// per match.
type MatchDataStage struct {
	streamer *matchdata.Streamer
	store    MatchDataStore
	parser   *parse.NonTimelineParser
	timeline *parse.TimelineParser
	drift    *parse.Detector
	log      *zap.Logger
}

// NewMatchDataStage builds the match-data stage.
func NewMatchDataStage(streamer *matchdata.Streamer, st MatchDataStore, parser *parse.NonTimelineParser, timeline *parse.TimelineParser, drift *parse.Detector, log *zap.Logger) *MatchDataStage {
	return &MatchDataStage{
		streamer: streamer,
		store:    st,
		parser:   parser,
		timeline: timeline,
		drift:    drift,
		log:      log.Named("stage.matchdata"),
	}
}

func (s *MatchDataStage) Name() string { return "match_data" }

// Run drains the merged payload streams. A failure anywhere rolls back
// everything the run wrote.
func (s *MatchDataStage) Run(ctx context.Context) error {
	run := NewRunContext(s.Name())
	s.log.Info("run start", zap.String("run_id", run.RunID.String()))

	ids, err := s.store.LoadPendingMatchIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		s.log.Info("no pending match ids")
		return nil
	}

	date := time.Unix(run.TS, 0).UTC().Format("2006-01-02")

	// The stream gets its own cancel so a failing consumer can stop
	// the producer pools before rolling back.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	items, wait := s.streamer.Merge(streamCtx, ids)

	err = func() error {
		for item := range items {
			if err := s.saveItem(ctx, run, item, date); err != nil {
				cancel()
				for range items {
				}
				_ = wait()
				return err
			}
		}
		if err := wait(); err != nil {
			return err
		}
		return s.store.InsertCollectedMatchIDs(ctx, run.RunID, ids)
	}()

	if err != nil {
		s.log.Error("run failed, rolling back", zap.String("run_id", run.RunID.String()), zap.Error(err))
		if rbErr := s.store.RollbackMatchDataRun(ctx, run.RunID); rbErr != nil {
			s.log.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return nil
}

func (s *MatchDataStage) saveItem(ctx context.Context, run RunContext, item matchdata.Item, date string) error {
	switch item.Stream {
	case matchdata.NonTimeline:
		tables, err := s.parser.Parse(item.Raw)
		if err != nil {
			return err
		}
		matchID := ""
		if len(tables.Metadata) > 0 {
			matchID = tables.Metadata[0].MatchID
		}
		s.drift.ScanNonTimeline(item.Raw, matchID, date)
		return s.store.PersistNonTimeline(ctx, run.RunID, tables)

	case matchdata.Timeline:
		tables, err := s.timeline.Parse(item.Raw)
		if err != nil {
			return err
		}
		matchID := ""
		if len(tables.FrameStats) > 0 {
			matchID = tables.FrameStats[0].MatchID
		}
		s.drift.ScanTimeline(item.Raw, matchID, date)
		return s.store.PersistTimeline(ctx, run.RunID, tables)

	default:
		return fmt.Errorf("pipeline: unknown stream %q", item.Stream)
	}
}
