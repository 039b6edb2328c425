package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/league"
	"github.com/riftdata/pipeline/internal/parse"
	"github.com/riftdata/pipeline/internal/telemetry"
)

type insertedBatch struct {
	query string
	rows  [][]any
}

type fakeConn struct {
	mu        sync.Mutex
	inserts   []insertedBatch
	execs     []string
	failSends int
	failExecs int
	onQuery   func(query string) [][]any
}

type fakeBatch struct {
	conn  *fakeConn
	query string
	rows  [][]any
}

func (b *fakeBatch) Append(v ...any) error {
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.conn.mu.Lock()
	defer b.conn.mu.Unlock()
	if b.conn.failSends > 0 {
		b.conn.failSends--
		return errors.New("send refused")
	}
	b.conn.inserts = append(b.conn.inserts, insertedBatch{query: b.query, rows: b.rows})
	return nil
}

func (c *fakeConn) PrepareBatch(_ context.Context, query string) (Batch, error) {
	return &fakeBatch{conn: c, query: query}, nil
}

func (c *fakeConn) Exec(_ context.Context, query string, _ ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failExecs > 0 {
		c.failExecs--
		return errors.New("exec refused")
	}
	c.execs = append(c.execs, query)
	return nil
}

func (c *fakeConn) Query(_ context.Context, query string, _ ...any) (Rows, error) {
	var rows [][]any
	if c.onQuery != nil {
		rows = c.onQuery(query)
	}
	return &fakeRows{rows: rows}, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int64:
			*p = row[i].(int64)
		default:
			return fmt.Errorf("unsupported scan dest %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

func testStore(conn *fakeConn) *Store {
	s := New(conn, telemetry.New(prometheus.NewRegistry()), zap.NewNop())
	s.retryInitial = time.Millisecond
	s.retryMax = 5 * time.Millisecond
	s.rollbackMax = 5 * time.Millisecond
	return s
}

func TestInsertStampsRunID(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)
	runID := uuid.New()

	err := s.Insert(context.Background(), "players", []string{"puuid", "wins"}, runID,
		[][]any{{"p1", 10}, {"p2", 20}})
	require.NoError(t, err)

	require.Len(t, conn.inserts, 1)
	require.Equal(t, "INSERT INTO players (run_id, puuid, wins)", conn.inserts[0].query)
	require.Equal(t, []any{runID.String(), "p1", 10}, conn.inserts[0].rows[0])
	require.Equal(t, []any{runID.String(), "p2", 20}, conn.inserts[0].rows[1])
}

func TestInsertRetriesThenSucceeds(t *testing.T) {
	conn := &fakeConn{failSends: 2}
	s := testStore(conn)

	err := s.Insert(context.Background(), "matchids", []string{"matchid"}, uuid.New(),
		[][]any{{"EUW1_1"}})
	require.NoError(t, err)
	require.Len(t, conn.inserts, 1)
}

func TestInsertGivesUpAfterFiveAttempts(t *testing.T) {
	conn := &fakeConn{failSends: 5}
	s := testStore(conn)

	err := s.Insert(context.Background(), "matchids", []string{"matchid"}, uuid.New(),
		[][]any{{"EUW1_1"}})
	require.Error(t, err)
	require.Empty(t, conn.inserts)
}

func TestInsertSkipsEmptyBatch(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)
	require.NoError(t, s.Insert(context.Background(), "players", []string{"puuid"}, uuid.New(), nil))
	require.Empty(t, conn.inserts)
}

func TestDeleteRunRetriesUntilSuccess(t *testing.T) {
	conn := &fakeConn{failExecs: 3}
	s := testStore(conn)
	runID := uuid.New()

	require.NoError(t, s.DeleteRun(context.Background(), "matchids", runID))
	require.Len(t, conn.execs, 1)
	require.Equal(t, "ALTER TABLE matchids DELETE WHERE run_id = ?", conn.execs[0])
}

func TestDeleteRunStopsOnContextEnd(t *testing.T) {
	conn := &fakeConn{failExecs: 1 << 30}
	s := testStore(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.Error(t, s.DeleteRun(ctx, "matchids", uuid.New()))
}

func TestInsertPlayersFlushesOnStreamEnd(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	entries := make(chan league.Entry, 3)
	entries <- league.Entry{PUUID: "a", Queue: "RANKED_SOLO_5x5", Tier: "CHALLENGER", Division: "I", Wins: 1, Losses: 2}
	entries <- league.Entry{PUUID: "b", Queue: "RANKED_SOLO_5x5", Tier: "GRANDMASTER", Division: "I"}
	entries <- league.Entry{PUUID: "c", Queue: "RANKED_FLEX_SR", Tier: "MASTER", Division: "I"}
	close(entries)

	require.NoError(t, s.InsertPlayers(context.Background(), uuid.New(), 1722, entries))
	require.Len(t, conn.inserts, 1)
	require.Len(t, conn.inserts[0].rows, 3)
	require.Contains(t, conn.inserts[0].query, "INSERT INTO players (run_id, puuid, queue_type")
	// ts rides along on every row.
	require.Equal(t, int64(1722), conn.inserts[0].rows[0][9])
}

func TestInsertMatchIDBatches(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	batches := make(chan []string, 3)
	batches <- []string{"EUW1_1", "EUW1_2"}
	batches <- nil
	batches <- []string{"KR_3"}
	close(batches)

	require.NoError(t, s.InsertMatchIDBatches(context.Background(), uuid.New(), batches))
	require.Len(t, conn.inserts, 1)
	require.Len(t, conn.inserts[0].rows, 3)
	require.Equal(t, "INSERT INTO matchids (run_id, matchid)", conn.inserts[0].query)
}

func TestLoadPlayerKeys(t *testing.T) {
	conn := &fakeConn{onQuery: func(query string) [][]any {
		if strings.Contains(query, "FROM players") {
			return [][]any{{"p1", "RANKED_SOLO_5x5", "euw1"}, {"p2", "RANKED_FLEX_SR", "kr"}}
		}
		return nil
	}}
	s := testStore(conn)

	keys, err := s.LoadPlayerKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, "p1", keys[0].PUUID)
	require.Equal(t, "kr", string(keys[1].Shard))
}

func TestLoadCollectionTimestamp(t *testing.T) {
	conn := &fakeConn{onQuery: func(query string) [][]any {
		if strings.Contains(query, "data_timestamps") {
			return [][]any{{int64(1722000000)}}
		}
		return nil
	}}
	s := testStore(conn)

	ts, ok, err := s.LoadCollectionTimestamp(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1722000000), ts)
}

func TestLoadCollectionTimestampMissing(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	_, ok, err := s.LoadCollectionTimestamp(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadPendingMatchIDs(t *testing.T) {
	conn := &fakeConn{onQuery: func(query string) [][]any {
		if strings.Contains(query, "NOT IN") {
			return [][]any{{"EUW1_9"}}
		}
		return nil
	}}
	s := testStore(conn)

	ids, err := s.LoadPendingMatchIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"EUW1_9"}, ids)
}

func TestPersistNonTimelineSkipsEmptyTables(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	tables := parse.NonTimelineTables{
		Metadata: []parse.MetadataRow{{MatchID: "EUW1_1", DataVersion: "2"}},
		GameInfo: []parse.GameInfoRow{{MatchID: "EUW1_1", GameID: 1, Season: "15"}},
	}
	require.NoError(t, s.PersistNonTimeline(context.Background(), uuid.New(), tables))

	require.Len(t, conn.inserts, 2)
	require.Contains(t, conn.inserts[0].query, "INSERT INTO match_metadata (run_id, match_id, data_version, participants)")
	require.Contains(t, conn.inserts[1].query, "INSERT INTO match_game_info (run_id, match_id, game_id")
}

func TestPersistTimelineColumnNames(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	tables := parse.TimelineTables{
		ChampionKills: []parse.ChampionKillRow{{MatchID: "EUW1_1", EventID: "EUW1_1:1:2:3"}},
		RareEvents: []parse.RareEventRow{{
			MatchID: "EUW1_1", Type: "ITEM_SOLD",
			Payload: map[string]parse.Value{"itemId": parse.NumberValue(1001)},
		}},
	}
	require.NoError(t, s.PersistTimeline(context.Background(), uuid.New(), tables))

	require.Len(t, conn.inserts, 2)
	require.Contains(t, conn.inserts[0].query, "timeline_champion_kill")
	require.Contains(t, conn.inserts[0].query, "event_id")

	// Open payload maps land as Map(String, String).
	payload := conn.inserts[1].rows[0][len(conn.inserts[1].rows[0])-1]
	require.Equal(t, map[string]string{"itemId": "1001"}, payload)
}

func TestRollbackMatchDataRunCoversAllTables(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	require.NoError(t, s.RollbackMatchDataRun(context.Background(), uuid.New()))
	require.Len(t, conn.execs, 20)
	require.Contains(t, conn.execs[0], "match_metadata")
	require.Contains(t, conn.execs[len(conn.execs)-1], "matchdata_matchids")
}

func TestRollbackMatchIDRunOrder(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	require.NoError(t, s.RollbackMatchIDRun(context.Background(), uuid.New()))
	require.Equal(t, []string{
		"ALTER TABLE data_timestamps DELETE WHERE run_id = ?",
		"ALTER TABLE matchid_puuids DELETE WHERE run_id = ?",
		"ALTER TABLE matchids DELETE WHERE run_id = ?",
	}, conn.execs)
}

func TestRollbackPlayerRun(t *testing.T) {
	conn := &fakeConn{}
	s := testStore(conn)

	require.NoError(t, s.RollbackPlayerRun(context.Background(), uuid.New()))
	require.Equal(t, []string{
		"ALTER TABLE players DELETE WHERE run_id = ?",
	}, conn.execs)
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"MatchID":        "match_id",
		"PUUID":          "puuid",
		"XP":             "xp",
		"PositionX":      "position_x",
		"Var1":           "var1",
		"RiotIDGameName": "riot_id_game_name",
		"CCReduction":    "cc_reduction",
		"PerkComboKey":   "perk_combo_key",
	}
	for in, want := range cases {
		require.Equal(t, want, snakeCase(in), in)
	}
}
