package parse

import (
	"fmt"

	"go.uber.org/zap"
)

// frameBucketSize floors frame timestamps to 10 s to cut per-row
// cardinality; raw event timestamps are preserved untouched.
const frameBucketSize = 10_000

// FrameBucket floors a frame timestamp to its 10 000-unit bucket.
func FrameBucket(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts / frameBucketSize * frameBucketSize
}

// KillEventID ties champion-kill damage rows to their parent kill. It
// is unique per (match, timestamp, killer, victim).
func KillEventID(matchID string, ts int64, killerID, victimID int) string {
	return fmt.Sprintf("%s:%d:%d:%d", matchID, ts, killerID, victimID)
}

// Damage directions for the two instance tables.
const (
	DamageDealt    = "DEALT"
	DamageReceived = "RECEIVED"
)

// Rich event type tags.
const (
	evBuildingKill         = "BUILDING_KILL"
	evChampionKill         = "CHAMPION_KILL"
	evChampionSpecialKill  = "CHAMPION_SPECIAL_KILL"
	evDragonSoulGiven      = "DRAGON_SOUL_GIVEN"
	evEliteMonsterKill     = "ELITE_MONSTER_KILL"
	evTurretPlateDestroyed = "TURRET_PLATE_DESTROYED"
)

// FrameStatsRow is one participant's state in one frame bucket.
type FrameStatsRow struct {
	MatchID        string
	FrameTimestamp int64
	ParticipantID  int
	ChampionStats
	CurrentGold int
	DamageStats
	GoldPerSecond            int
	JungleMinionsKilled      int
	Level                    int
	MinionsKilled            int
	PositionX                int
	PositionY                int
	TimeEnemySpentControlled int
	TotalGold                int
	XP                       int
}

// BuildingKillRow is one BUILDING_KILL event.
type BuildingKillRow struct {
	MatchID                 string
	FrameTimestamp          int64
	Timestamp               int64
	Bounty                  int
	BuildingType            string
	KillerID                int
	LaneType                string
	PositionX               int
	PositionY               int
	TeamID                  int
	TowerType               string
	AssistingParticipantIDs []int
}

// ChampionKillRow is one CHAMPION_KILL event with its damage lists
// stripped into the instance tables.
type ChampionKillRow struct {
	MatchID                 string
	FrameTimestamp          int64
	Timestamp               int64
	EventID                 string
	KillerID                int
	VictimID                int
	Bounty                  int
	KillStreakLength        int
	ShutdownBounty          int
	PositionX               int
	PositionY               int
	AssistingParticipantIDs []int
}

// ChampionSpecialKillRow is one CHAMPION_SPECIAL_KILL event.
type ChampionSpecialKillRow struct {
	MatchID         string
	FrameTimestamp  int64
	Timestamp       int64
	KillType        string
	KillerID        int
	MultiKillLength int
	PositionX       int
	PositionY       int
}

// DragonSoulGivenRow is one DRAGON_SOUL_GIVEN event.
type DragonSoulGivenRow struct {
	MatchID        string
	FrameTimestamp int64
	Timestamp      int64
	Name           string
	TeamID         int
}

// EliteMonsterKillRow is one ELITE_MONSTER_KILL event.
type EliteMonsterKillRow struct {
	MatchID                 string
	FrameTimestamp          int64
	Timestamp               int64
	Bounty                  int
	KillerID                int
	KillerTeamID            int
	MonsterType             string
	MonsterSubType          string
	PositionX               int
	PositionY               int
	AssistingParticipantIDs []int
}

// TurretPlateDestroyedRow is one TURRET_PLATE_DESTROYED event.
type TurretPlateDestroyedRow struct {
	MatchID        string
	FrameTimestamp int64
	Timestamp      int64
	KillerID       int
	LaneType       string
	PositionX      int
	PositionY      int
	TeamID         int
}

// RareEventRow carries every event type outside the six rich tables,
// payload preserved as an open map under the type label.
type RareEventRow struct {
	MatchID        string
	FrameTimestamp int64
	Timestamp      int64
	Type           string
	Payload        map[string]Value
}

// DamageInstanceRow is one victim damage instance, keyed to its parent
// kill.
type DamageInstanceRow struct {
	MatchID        string
	FrameTimestamp int64
	Timestamp      int64
	EventID        string
	Direction      string
	Index          int
	DamageInstance
}

// TimelineTables is the output of one timeline parse.
type TimelineTables struct {
	FrameStats            []FrameStatsRow
	BuildingKills         []BuildingKillRow
	ChampionKills         []ChampionKillRow
	ChampionSpecialKills  []ChampionSpecialKillRow
	DragonSoulsGiven      []DragonSoulGivenRow
	EliteMonsterKills     []EliteMonsterKillRow
	TurretPlatesDestroyed []TurretPlateDestroyedRow
	RareEvents            []RareEventRow
	DamageDealt           []DamageInstanceRow
	DamageReceived        []DamageInstanceRow
}

// TimelineParser validates and tabulates timeline payloads.
type TimelineParser struct {
	log    *zap.Logger
	strict bool
}

// NewTimelineParser builds a parser with the same soft-fail toggle as
// the non-timeline one.
func NewTimelineParser(log *zap.Logger, strict bool) *TimelineParser {
	return &TimelineParser{log: log.Named("parse.timeline"), strict: strict}
}

// Parse turns one raw timeline payload into its row tables.
func (p *TimelineParser) Parse(raw []byte) (TimelineTables, error) {
	var tl TimelinePayload
	err := json.Unmarshal(raw, &tl)
	if err == nil {
		err = tl.validate()
	}
	if err != nil {
		if p.strict {
			return TimelineTables{}, fmt.Errorf("parse: timeline payload rejected: %w", err)
		}
		p.log.Warn("timeline payload rejected, emitting empty tables", zap.Error(err))
		return TimelineTables{}, nil
	}

	matchID := tl.Metadata.MatchID
	var tables TimelineTables

	for fi := range tl.Info.Frames {
		frame := &tl.Info.Frames[fi]
		bucket := FrameBucket(frame.Timestamp)

		for _, key := range sortedKeys(frame.ParticipantFrames) {
			tables.FrameStats = append(tables.FrameStats,
				frameStatsRow(matchID, bucket, frame.ParticipantFrames[key]))
		}

		for _, rawEvent := range frame.Events {
			if err := p.parseEvent(matchID, bucket, rawEvent, &tables); err != nil {
				if p.strict {
					return TimelineTables{}, err
				}
				p.log.Warn("timeline event rejected",
					zap.String("match_id", matchID), zap.Error(err))
			}
		}
	}
	return tables, nil
}

func frameStatsRow(matchID string, bucket int64, pf ParticipantFrame) FrameStatsRow {
	row := FrameStatsRow{
		MatchID:                  matchID,
		FrameTimestamp:           bucket,
		ParticipantID:            pf.ParticipantID,
		ChampionStats:            pf.ChampionStats,
		CurrentGold:              pf.CurrentGold,
		DamageStats:              pf.DamageStats,
		GoldPerSecond:            pf.GoldPerSecond,
		JungleMinionsKilled:      pf.JungleMinionsKilled,
		Level:                    pf.Level,
		MinionsKilled:            pf.MinionsKilled,
		TimeEnemySpentControlled: pf.TimeEnemySpentControlled,
		TotalGold:                pf.TotalGold,
		XP:                       pf.XP,
	}
	if pf.Position != nil {
		row.PositionX = pf.Position.X
		row.PositionY = pf.Position.Y
	}
	return row
}

func (p *TimelineParser) parseEvent(matchID string, bucket int64, raw []byte, tables *TimelineTables) error {
	var head eventHead
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" {
		return fmt.Errorf("parse: event has no type discriminator")
	}

	switch head.Type {
	case evBuildingKill:
		var e eventBuildingKill
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse: %s: %w", head.Type, err)
		}
		row := BuildingKillRow{
			MatchID:                 matchID,
			FrameTimestamp:          bucket,
			Timestamp:               e.Timestamp,
			Bounty:                  e.Bounty,
			BuildingType:            e.BuildingType,
			KillerID:                e.KillerID,
			LaneType:                e.LaneType,
			TeamID:                  e.TeamID,
			TowerType:               e.TowerType,
			AssistingParticipantIDs: e.AssistingParticipantIDs,
		}
		row.PositionX, row.PositionY = xy(e.Position)
		tables.BuildingKills = append(tables.BuildingKills, row)

	case evChampionKill:
		var e eventChampionKill
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse: %s: %w", head.Type, err)
		}
		eventID := KillEventID(matchID, e.Timestamp, e.KillerID, e.VictimID)
		row := ChampionKillRow{
			MatchID:                 matchID,
			FrameTimestamp:          bucket,
			Timestamp:               e.Timestamp,
			EventID:                 eventID,
			KillerID:                e.KillerID,
			VictimID:                e.VictimID,
			Bounty:                  e.Bounty,
			KillStreakLength:        e.KillStreakLength,
			ShutdownBounty:          e.ShutdownBounty,
			AssistingParticipantIDs: e.AssistingParticipantIDs,
		}
		row.PositionX, row.PositionY = xy(e.Position)
		tables.ChampionKills = append(tables.ChampionKills, row)

		dealt := append(e.VictimDamageDealt, e.VictimTeamfightDamageDealt...)
		received := append(e.VictimDamageReceived, e.VictimTeamfightDamageReceived...)
		tables.DamageDealt = append(tables.DamageDealt,
			damageRows(matchID, bucket, e.Timestamp, eventID, DamageDealt, dealt)...)
		tables.DamageReceived = append(tables.DamageReceived,
			damageRows(matchID, bucket, e.Timestamp, eventID, DamageReceived, received)...)

	case evChampionSpecialKill:
		var e eventChampionSpecialKill
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse: %s: %w", head.Type, err)
		}
		row := ChampionSpecialKillRow{
			MatchID:         matchID,
			FrameTimestamp:  bucket,
			Timestamp:       e.Timestamp,
			KillType:        e.KillType,
			KillerID:        e.KillerID,
			MultiKillLength: e.MultiKillLength,
		}
		row.PositionX, row.PositionY = xy(e.Position)
		tables.ChampionSpecialKills = append(tables.ChampionSpecialKills, row)

	case evDragonSoulGiven:
		var e eventDragonSoulGiven
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse: %s: %w", head.Type, err)
		}
		tables.DragonSoulsGiven = append(tables.DragonSoulsGiven, DragonSoulGivenRow{
			MatchID:        matchID,
			FrameTimestamp: bucket,
			Timestamp:      e.Timestamp,
			Name:           e.Name,
			TeamID:         e.TeamID,
		})

	case evEliteMonsterKill:
		var e eventEliteMonsterKill
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse: %s: %w", head.Type, err)
		}
		row := EliteMonsterKillRow{
			MatchID:                 matchID,
			FrameTimestamp:          bucket,
			Timestamp:               e.Timestamp,
			Bounty:                  e.Bounty,
			KillerID:                e.KillerID,
			KillerTeamID:            e.KillerTeamID,
			MonsterType:             e.MonsterType,
			MonsterSubType:          e.MonsterSubType,
			AssistingParticipantIDs: e.AssistingParticipantIDs,
		}
		row.PositionX, row.PositionY = xy(e.Position)
		tables.EliteMonsterKills = append(tables.EliteMonsterKills, row)

	case evTurretPlateDestroyed:
		var e eventTurretPlateDestroyed
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse: %s: %w", head.Type, err)
		}
		row := TurretPlateDestroyedRow{
			MatchID:        matchID,
			FrameTimestamp: bucket,
			Timestamp:      e.Timestamp,
			KillerID:       e.KillerID,
			LaneType:       e.LaneType,
			TeamID:         e.TeamID,
		}
		row.PositionX, row.PositionY = xy(e.Position)
		tables.TurretPlatesDestroyed = append(tables.TurretPlatesDestroyed, row)

	default:
		payload := make(map[string]Value)
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("parse: %s payload not flat: %w", head.Type, err)
		}
		delete(payload, "type")
		delete(payload, "timestamp")
		tables.RareEvents = append(tables.RareEvents, RareEventRow{
			MatchID:        matchID,
			FrameTimestamp: bucket,
			Timestamp:      head.Timestamp,
			Type:           head.Type,
			Payload:        payload,
		})
	}
	return nil
}

func xy(p *Position) (int, int) {
	if p == nil {
		return 0, 0
	}
	return p.X, p.Y
}

func damageRows(matchID string, bucket, ts int64, eventID, direction string, instances []DamageInstance) []DamageInstanceRow {
	rows := make([]DamageInstanceRow, 0, len(instances))
	for i, d := range instances {
		rows = append(rows, DamageInstanceRow{
			MatchID:        matchID,
			FrameTimestamp: bucket,
			Timestamp:      ts,
			EventID:        eventID,
			Direction:      direction,
			Index:          i,
			DamageInstance: d,
		})
	}
	return rows
}
