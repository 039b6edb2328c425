package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftdata/pipeline/internal/league"
)

const entryBuffer = 1024

// PlayerSink persists the player stream under one run and deletes the
// run's rows when the stage fails mid-stream.
type PlayerSink interface {
	InsertPlayers(ctx context.Context, runID uuid.UUID, ts int64, entries <-chan league.Entry) error
	RollbackPlayerRun(ctx context.Context, runID uuid.UUID) error
}

// PlayersStage crawls the ranked ladders and persists every entry. The
// elite ladders stream first, then the divisioned pages.
type PlayersStage struct {
	crawler  *league.Crawler
	sink     PlayerSink
	elite    league.EliteBoundsConfig
	brackets league.BracketBoundsConfig
	log      *zap.Logger
}

// NewPlayersStage builds the players stage.
func NewPlayersStage(crawler *league.Crawler, sink PlayerSink, elite league.EliteBoundsConfig, brackets league.BracketBoundsConfig, log *zap.Logger) *PlayersStage {
	return &PlayersStage{
		crawler:  crawler,
		sink:     sink,
		elite:    elite,
		brackets: brackets,
		log:      log.Named("stage.players"),
	}
}

func (s *PlayersStage) Name() string { return "players" }

// Run streams elite then sub-elite entries into batched inserts.
func (s *PlayersStage) Run(ctx context.Context) error {
	run := NewRunContext(s.Name())
	s.log.Info("run start", zap.String("run_id", run.RunID.String()))

	entries := make(chan league.Entry, entryBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(entries)
		if err := s.crawler.StreamElite(gctx, s.elite, entries); err != nil {
			return err
		}
		return s.crawler.StreamSubElite(gctx, s.brackets, entries)
	})
	g.Go(func() error {
		return s.sink.InsertPlayers(gctx, run.RunID, run.TS, entries)
	})

	if err := g.Wait(); err != nil {
		s.log.Error("run failed, rolling back", zap.String("run_id", run.RunID.String()), zap.Error(err))
		if rbErr := s.sink.RollbackPlayerRun(ctx, run.RunID); rbErr != nil {
			s.log.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return nil
}
