package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/flow"
	"github.com/riftdata/pipeline/internal/parse"
)

const matchDataIDsTable = "matchdata_matchids"

// tableSchedule binds one destination table to the row slice it
// persists out of a parsed payload.
type tableSchedule[T any] struct {
	table string
	rows  func(T) []any
}

func boxed[R any](rows []R) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out
}

var nonTimelineSchedules = []tableSchedule[parse.NonTimelineTables]{
	{"match_metadata", func(t parse.NonTimelineTables) []any { return boxed(t.Metadata) }},
	{"match_game_info", func(t parse.NonTimelineTables) []any { return boxed(t.GameInfo) }},
	{"match_bans", func(t parse.NonTimelineTables) []any { return boxed(t.Bans) }},
	{"match_feats", func(t parse.NonTimelineTables) []any { return boxed(t.Feats) }},
	{"match_objectives", func(t parse.NonTimelineTables) []any { return boxed(t.Objectives) }},
	{"match_participant_stats", func(t parse.NonTimelineTables) []any { return boxed(t.Stats) }},
	{"match_participant_challenges", func(t parse.NonTimelineTables) []any { return boxed(t.Challenges) }},
	{"match_participant_perk_values", func(t parse.NonTimelineTables) []any { return boxed(t.PerkValues) }},
	{"match_participant_perk_ids", func(t parse.NonTimelineTables) []any { return boxed(t.PerkIDs) }},
}

var timelineSchedules = []tableSchedule[parse.TimelineTables]{
	{"timeline_frame_stats", func(t parse.TimelineTables) []any { return boxed(t.FrameStats) }},
	{"timeline_building_kill", func(t parse.TimelineTables) []any { return boxed(t.BuildingKills) }},
	{"timeline_champion_kill", func(t parse.TimelineTables) []any { return boxed(t.ChampionKills) }},
	{"timeline_champion_special_kill", func(t parse.TimelineTables) []any { return boxed(t.ChampionSpecialKills) }},
	{"timeline_dragon_soul_given", func(t parse.TimelineTables) []any { return boxed(t.DragonSoulsGiven) }},
	{"timeline_elite_monster_kill", func(t parse.TimelineTables) []any { return boxed(t.EliteMonsterKills) }},
	{"timeline_turret_plate_destroyed", func(t parse.TimelineTables) []any { return boxed(t.TurretPlatesDestroyed) }},
	{"timeline_rare_events", func(t parse.TimelineTables) []any { return boxed(t.RareEvents) }},
	{"timeline_ck_damage_dealt", func(t parse.TimelineTables) []any { return boxed(t.DamageDealt) }},
	{"timeline_ck_damage_received", func(t parse.TimelineTables) []any { return boxed(t.DamageReceived) }},
}

// matchDataTables lists every table the match-data stage writes, for
// rollback.
func matchDataTables() []string {
	tables := make([]string, 0, len(nonTimelineSchedules)+len(timelineSchedules)+1)
	for _, s := range nonTimelineSchedules {
		tables = append(tables, s.table)
	}
	for _, s := range timelineSchedules {
		tables = append(tables, s.table)
	}
	return append(tables, matchDataIDsTable)
}

// LoadPendingMatchIDs reads the match ids not yet covered by a
// match-data run.
func (s *Store) LoadPendingMatchIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT m.matchid FROM matchids AS m
		WHERE m.matchid NOT IN (SELECT matchid FROM matchdata_matchids)`)
	if err != nil {
		return nil, fmt.Errorf("store: load pending match ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan pending match id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.log.Info("pending match ids loaded", zap.Int("count", len(ids)))
	return ids, nil
}

func persistSchedules[T any](ctx context.Context, s *Store, runID uuid.UUID, tables T, schedules []tableSchedule[T]) error {
	for _, sched := range schedules {
		if err := s.InsertStructs(ctx, sched.table, runID, sched.rows(tables)); err != nil {
			return err
		}
	}
	return nil
}

// PersistNonTimeline writes every non-timeline table slice of one
// match under runID.
func (s *Store) PersistNonTimeline(ctx context.Context, runID uuid.UUID, tables parse.NonTimelineTables) error {
	return persistSchedules(ctx, s, runID, tables, nonTimelineSchedules)
}

// PersistTimeline writes every timeline table slice of one match under
// runID.
func (s *Store) PersistTimeline(ctx context.Context, runID uuid.UUID, tables parse.TimelineTables) error {
	return persistSchedules(ctx, s, runID, tables, timelineSchedules)
}

// InsertCollectedMatchIDs marks match ids as covered by this run.
func (s *Store) InsertCollectedMatchIDs(ctx context.Context, runID uuid.UUID, ids []string) error {
	for _, chunk := range flow.Chunk(ids, puuidInsertBatch) {
		rows := make([][]any, 0, len(chunk))
		for _, id := range chunk {
			rows = append(rows, []any{id})
		}
		if err := s.Insert(ctx, matchDataIDsTable, []string{"matchid"}, runID, rows); err != nil {
			return err
		}
	}
	return nil
}

// RollbackMatchDataRun deletes everything the match-data stage wrote
// under runID, across both schedules and the coverage table.
func (s *Store) RollbackMatchDataRun(ctx context.Context, runID uuid.UUID) error {
	s.log.Warn("rolling back match-data run", zap.String("run_id", runID.String()))
	for _, table := range matchDataTables() {
		if err := s.DeleteRun(ctx, table, runID); err != nil {
			return err
		}
	}
	return nil
}
