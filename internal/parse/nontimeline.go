package parse

import (
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
)

// MetadataRow is one row of the match metadata table.
type MetadataRow struct {
	MatchID      string
	DataVersion  string
	Participants []string
}

// GameInfoRow is one row of the game info table. The version string is
// decomposed into season, patch and sub-version.
type GameInfoRow struct {
	MatchID            string
	GameID             int64
	EndOfGameResult    string
	GameCreation       int64
	GameDuration       int64
	GameEndTimestamp   int64
	GameStartTimestamp int64
	GameType           string
	GameVersion        string
	Season             string
	Patch              string
	SubVersion         string
	MapID              int
	PlatformID         string
	QueueID            int
}

// BanRow is one champion ban.
type BanRow struct {
	MatchID    string
	GameID     int64
	TeamID     int
	PickTurn   int
	ChampionID int
}

// FeatRow is one team feat state.
type FeatRow struct {
	MatchID   string
	GameID    int64
	TeamID    int
	FeatType  string
	FeatState int
}

// ObjectiveRow is one team objective aggregate.
type ObjectiveRow struct {
	MatchID       string
	GameID        int64
	TeamID        int
	ObjectiveType string
	First         bool
	Kills         int
}

// ParticipantStatsRow is one participant's flattened end-of-game
// stats with the store's byte-width caps applied.
type ParticipantStatsRow struct {
	MatchID string
	GameID  int64
	ParticipantCore
}

// ChallengeRow keeps one participant's challenge payload as an open
// map. Keys beginning with SWARM are excluded upstream.
type ChallengeRow struct {
	MatchID string
	GameID  int64
	TeamID  int
	PUUID   string
	Values  map[string]Value
}

// PerkValueRow is one rune slot with its three vars.
type PerkValueRow struct {
	MatchID string
	GameID  int64
	TeamID  int
	PUUID   string
	Style   string // "primary" or "sub"
	Slot    int    // 1-based within the style
	PerkID  int
	Var1    int
	Var2    int
	Var3    int
}

// PerkIDRow is one participant's rune page projection with the combo
// key over the six selected perks.
type PerkIDRow struct {
	MatchID      string
	GameID       int64
	TeamID       int
	PUUID        string
	StatDefense  int
	StatFlex     int
	StatOffense  int
	PrimaryStyle int
	SubStyle     int
	PrimaryPerk1 int
	PrimaryPerk2 int
	PrimaryPerk3 int
	PrimaryPerk4 int
	SubPerk1     int
	SubPerk2     int
	PerkComboKey *big.Int
}

// NonTimelineTables is the output of one non-timeline parse.
type NonTimelineTables struct {
	Metadata   []MetadataRow
	GameInfo   []GameInfoRow
	Bans       []BanRow
	Feats      []FeatRow
	Objectives []ObjectiveRow
	Stats      []ParticipantStatsRow
	Challenges []ChallengeRow
	PerkValues []PerkValueRow
	PerkIDs    []PerkIDRow
}

// comboKeyShift spaces perk ids 14 bits apart inside the combo key;
// the six-perk sum exceeds 64 bits, hence big.Int.
const comboKeyShift = 14

// PerkComboKey is the deterministic sum over the six selected perks,
// perk i shifted left by 14·i, primary slots first.
func PerkComboKey(perkIDs []int) *big.Int {
	key := new(big.Int)
	for i, id := range perkIDs {
		part := new(big.Int).Lsh(big.NewInt(int64(id)), uint(comboKeyShift*i))
		key.Add(key, part)
	}
	return key
}

// clamp8 caps counters persisted in single-byte store columns.
func clamp8(n int) int {
	if n > 255 {
		return 255
	}
	return n
}

// applyStoreCaps clamps the fields the store keeps in UInt8 columns.
func applyStoreCaps(c *ParticipantCore) {
	c.ChampLevel = clamp8(c.ChampLevel)
	c.DoubleKills = clamp8(c.DoubleKills)
	c.TripleKills = clamp8(c.TripleKills)
	c.QuadraKills = clamp8(c.QuadraKills)
	c.PentaKills = clamp8(c.PentaKills)
	c.UnrealKills = clamp8(c.UnrealKills)
	c.KillingSprees = clamp8(c.KillingSprees)
	c.LargestKillingSpree = clamp8(c.LargestKillingSpree)
	c.LargestMultiKill = clamp8(c.LargestMultiKill)
	c.TotalUnitsHealed = clamp8(c.TotalUnitsHealed)
	c.AllInPings = clamp8(c.AllInPings)
	c.AssistMePings = clamp8(c.AssistMePings)
	c.BasicPings = clamp8(c.BasicPings)
	c.CommandPings = clamp8(c.CommandPings)
	c.DangerPings = clamp8(c.DangerPings)
	c.EnemyMissingPings = clamp8(c.EnemyMissingPings)
	c.EnemyVisionPings = clamp8(c.EnemyVisionPings)
	c.GetBackPings = clamp8(c.GetBackPings)
	c.HoldPings = clamp8(c.HoldPings)
	c.NeedVisionPings = clamp8(c.NeedVisionPings)
	c.OnMyWayPings = clamp8(c.OnMyWayPings)
	c.PushPings = clamp8(c.PushPings)
	c.RetreatPings = clamp8(c.RetreatPings)
	c.VisionClearedPings = clamp8(c.VisionClearedPings)
}

const excludedChallengePrefix = "SWARM"

// NonTimelineParser validates and tabulates non-timeline payloads.
type NonTimelineParser struct {
	log    *zap.Logger
	strict bool
}

// NewNonTimelineParser builds a parser. With strict off, a payload
// that fails validation yields empty tables instead of an error; the
// toggle exists to flip once the upstream schema settles.
func NewNonTimelineParser(log *zap.Logger, strict bool) *NonTimelineParser {
	return &NonTimelineParser{log: log.Named("parse.match"), strict: strict}
}

// Parse turns one raw payload into the nine non-timeline tables.
func (p *NonTimelineParser) Parse(raw []byte) (NonTimelineTables, error) {
	var m Match
	err := json.Unmarshal(raw, &m)
	if err == nil {
		err = m.validate()
	}
	if err != nil {
		if p.strict {
			return NonTimelineTables{}, fmt.Errorf("parse: non-timeline payload rejected: %w", err)
		}
		p.log.Warn("non-timeline payload rejected, emitting empty tables", zap.Error(err))
		return NonTimelineTables{}, nil
	}

	matchID := m.Metadata.MatchID
	gameID := m.Info.GameID

	tables := NonTimelineTables{
		Metadata: []MetadataRow{{
			MatchID:      matchID,
			DataVersion:  m.Metadata.DataVersion,
			Participants: m.Metadata.Participants,
		}},
		GameInfo: []GameInfoRow{p.gameInfo(matchID, &m.Info)},
	}

	for _, team := range m.Info.Teams {
		for _, ban := range team.Bans {
			tables.Bans = append(tables.Bans, BanRow{
				MatchID:    matchID,
				GameID:     gameID,
				TeamID:     team.TeamID,
				PickTurn:   ban.PickTurn,
				ChampionID: ban.ChampionID,
			})
		}
		for _, featType := range sortedKeys(team.Feats) {
			tables.Feats = append(tables.Feats, FeatRow{
				MatchID:   matchID,
				GameID:    gameID,
				TeamID:    team.TeamID,
				FeatType:  featType,
				FeatState: team.Feats[featType].FeatState,
			})
		}
		for _, objType := range sortedKeys(team.Objectives) {
			obj := team.Objectives[objType]
			tables.Objectives = append(tables.Objectives, ObjectiveRow{
				MatchID:       matchID,
				GameID:        gameID,
				TeamID:        team.TeamID,
				ObjectiveType: objType,
				First:         obj.First,
				Kills:         obj.Kills,
			})
		}
	}

	for i := range m.Info.Participants {
		part := &m.Info.Participants[i]

		stats := ParticipantStatsRow{MatchID: matchID, GameID: gameID, ParticipantCore: part.ParticipantCore}
		applyStoreCaps(&stats.ParticipantCore)
		tables.Stats = append(tables.Stats, stats)

		tables.Challenges = append(tables.Challenges, ChallengeRow{
			MatchID: matchID,
			GameID:  gameID,
			TeamID:  part.TeamID,
			PUUID:   part.PUUID,
			Values:  filterChallenges(part.Challenges),
		})

		values, ids := p.perkRows(matchID, gameID, part)
		tables.PerkValues = append(tables.PerkValues, values...)
		tables.PerkIDs = append(tables.PerkIDs, ids)
	}

	return tables, nil
}

func (p *NonTimelineParser) gameInfo(matchID string, info *Info) GameInfoRow {
	season, patch, sub := splitVersion(info.GameVersion)
	if season == versionUnknown {
		p.log.Warn("game version has fewer than 3 components",
			zap.String("match_id", matchID),
			zap.String("game_version", info.GameVersion))
	}
	return GameInfoRow{
		MatchID:            matchID,
		GameID:             info.GameID,
		EndOfGameResult:    info.EndOfGameResult,
		GameCreation:       info.GameCreation,
		GameDuration:       info.GameDuration,
		GameEndTimestamp:   info.GameEndTimestamp,
		GameStartTimestamp: info.GameStartTimestamp,
		GameType:           info.GameType,
		GameVersion:        info.GameVersion,
		Season:             season,
		Patch:              patch,
		SubVersion:         sub,
		MapID:              info.MapID,
		PlatformID:         info.PlatformID,
		QueueID:            info.QueueID,
	}
}

const versionUnknown = "unknown"

// splitVersion decomposes "15.1.652.3380" into season, patch and the
// remaining sub-version. Short versions yield "unknown" components.
func splitVersion(v string) (season, patch, sub string) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 3 {
		return versionUnknown, versionUnknown, versionUnknown
	}
	return parts[0], parts[1], parts[2]
}

func filterChallenges(in map[string]Value) map[string]Value {
	out := make(map[string]Value, len(in))
	for k, v := range in {
		if strings.HasPrefix(k, excludedChallengePrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// perkRows projects the rune page into the per-slot value rows and the
// id row with its combo key. Validation already guaranteed the style
// layout.
func (p *NonTimelineParser) perkRows(matchID string, gameID int64, part *Participant) ([]PerkValueRow, PerkIDRow) {
	styles, _ := part.Perks.styles()

	var values []PerkValueRow
	add := func(styleName string, sels []PerkSelection, count int) {
		for i := 0; i < count; i++ {
			values = append(values, PerkValueRow{
				MatchID: matchID,
				GameID:  gameID,
				TeamID:  part.TeamID,
				PUUID:   part.PUUID,
				Style:   styleName,
				Slot:    i + 1,
				PerkID:  sels[i].Perk,
				Var1:    sels[i].Var1,
				Var2:    sels[i].Var2,
				Var3:    sels[i].Var3,
			})
		}
	}
	add("primary", styles.primary.Selections, 4)
	add("sub", styles.sub.Selections, 2)

	perkIDs := []int{
		styles.primary.Selections[0].Perk,
		styles.primary.Selections[1].Perk,
		styles.primary.Selections[2].Perk,
		styles.primary.Selections[3].Perk,
		styles.sub.Selections[0].Perk,
		styles.sub.Selections[1].Perk,
	}

	ids := PerkIDRow{
		MatchID:      matchID,
		GameID:       gameID,
		TeamID:       part.TeamID,
		PUUID:        part.PUUID,
		StatDefense:  part.Perks.StatPerks.Defense,
		StatFlex:     part.Perks.StatPerks.Flex,
		StatOffense:  part.Perks.StatPerks.Offense,
		PrimaryStyle: styles.primary.Style,
		SubStyle:     styles.sub.Style,
		PrimaryPerk1: perkIDs[0],
		PrimaryPerk2: perkIDs[1],
		PrimaryPerk3: perkIDs[2],
		PrimaryPerk4: perkIDs[3],
		SubPerk1:     perkIDs[4],
		SubPerk2:     perkIDs[5],
		PerkComboKey: PerkComboKey(perkIDs),
	}
	return values, ids
}
