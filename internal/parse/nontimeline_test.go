package parse

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const matchFixture = `{
  "metadata": {
    "dataVersion": "2",
    "matchId": "EUW1_7000000001",
    "participants": ["puuid-a", "puuid-b"]
  },
  "info": {
    "endOfGameResult": "GameComplete",
    "gameCreation": 1722000000000,
    "gameDuration": 1800,
    "gameEndTimestamp": 1722000001800,
    "gameId": 7000000001,
    "gameStartTimestamp": 1722000000000,
    "gameType": "MATCHED_GAME",
    "gameVersion": "15.1.652.3380",
    "mapId": 11,
    "platformId": "EUW1",
    "queueId": 420,
    "teams": [
      {
        "teamId": 100,
        "win": true,
        "bans": [
          {"championId": 266, "pickTurn": 1},
          {"championId": 103, "pickTurn": 2}
        ],
        "feats": {"EPIC_MONSTER_KILL": {"featState": 3}},
        "objectives": {
          "baron": {"first": true, "kills": 1},
          "dragon": {"first": false, "kills": 2}
        }
      },
      {
        "teamId": 200,
        "win": false,
        "bans": [],
        "objectives": {"baron": {"first": false, "kills": 0}}
      }
    ],
    "participants": [
      {
        "participantId": 1,
        "puuid": "puuid-a",
        "teamId": 100,
        "championId": 266,
        "champLevel": 18,
        "kills": 12,
        "deaths": 3,
        "assists": 9,
        "doubleKills": 300,
        "goldEarned": 14500,
        "challenges": {
          "kda": 7.0,
          "legendaryItemUsed": [3078, 6692],
          "SWARM_DefeatAatrox": 1
        },
        "perks": {
          "statPerks": {"defense": 5002, "flex": 5008, "offense": 5005},
          "styles": [
            {
              "description": "primaryStyle",
              "style": 8100,
              "selections": [
                {"perk": 1, "var1": 11, "var2": 12, "var3": 13},
                {"perk": 2, "var1": 21, "var2": 22, "var3": 23},
                {"perk": 3, "var1": 0, "var2": 0, "var3": 0},
                {"perk": 4, "var1": 0, "var2": 0, "var3": 0}
              ]
            },
            {
              "description": "subStyle",
              "style": 8200,
              "selections": [
                {"perk": 5, "var1": 0, "var2": 0, "var3": 0},
                {"perk": 6, "var1": 0, "var2": 0, "var3": 0}
              ]
            }
          ]
        }
      }
    ]
  }
}`

func TestParseNonTimeline(t *testing.T) {
	p := NewNonTimelineParser(zap.NewNop(), false)
	tables, err := p.Parse([]byte(matchFixture))
	require.NoError(t, err)

	require.Len(t, tables.Metadata, 1)
	require.Equal(t, "EUW1_7000000001", tables.Metadata[0].MatchID)
	require.Equal(t, []string{"puuid-a", "puuid-b"}, tables.Metadata[0].Participants)

	require.Len(t, tables.GameInfo, 1)
	info := tables.GameInfo[0]
	require.Equal(t, int64(7000000001), info.GameID)
	require.Equal(t, "15", info.Season)
	require.Equal(t, "1", info.Patch)
	require.Equal(t, "652.3380", info.SubVersion)
	require.Equal(t, 420, info.QueueID)

	require.Len(t, tables.Bans, 2)
	require.Equal(t, 266, tables.Bans[0].ChampionID)
	require.Equal(t, 100, tables.Bans[0].TeamID)

	require.Len(t, tables.Feats, 1)
	require.Equal(t, "EPIC_MONSTER_KILL", tables.Feats[0].FeatType)
	require.Equal(t, 3, tables.Feats[0].FeatState)

	// Objective rows come out in sorted type order per team.
	require.Len(t, tables.Objectives, 3)
	require.Equal(t, "baron", tables.Objectives[0].ObjectiveType)
	require.True(t, tables.Objectives[0].First)
	require.Equal(t, "dragon", tables.Objectives[1].ObjectiveType)
	require.Equal(t, 200, tables.Objectives[2].TeamID)

	require.Len(t, tables.Stats, 1)
	stats := tables.Stats[0]
	require.Equal(t, "puuid-a", stats.PUUID)
	require.Equal(t, 12, stats.Kills)
	require.Equal(t, 255, stats.DoubleKills)
	require.Equal(t, 18, stats.ChampLevel)

	require.Len(t, tables.Challenges, 1)
	ch := tables.Challenges[0].Values
	require.Equal(t, NumberValue(7), ch["kda"])
	require.Equal(t, NumbersValue(3078, 6692), ch["legendaryItemUsed"])
	require.NotContains(t, ch, "SWARM_DefeatAatrox")
}

func TestParsePerkRows(t *testing.T) {
	p := NewNonTimelineParser(zap.NewNop(), false)
	tables, err := p.Parse([]byte(matchFixture))
	require.NoError(t, err)

	require.Len(t, tables.PerkValues, 6)
	first := tables.PerkValues[0]
	require.Equal(t, "primary", first.Style)
	require.Equal(t, 1, first.Slot)
	require.Equal(t, 1, first.PerkID)
	require.Equal(t, 11, first.Var1)
	last := tables.PerkValues[5]
	require.Equal(t, "sub", last.Style)
	require.Equal(t, 2, last.Slot)
	require.Equal(t, 6, last.PerkID)

	require.Len(t, tables.PerkIDs, 1)
	ids := tables.PerkIDs[0]
	require.Equal(t, 8100, ids.PrimaryStyle)
	require.Equal(t, 8200, ids.SubStyle)
	require.Equal(t, 5002, ids.StatDefense)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6}, []int{
		ids.PrimaryPerk1, ids.PrimaryPerk2, ids.PrimaryPerk3, ids.PrimaryPerk4,
		ids.SubPerk1, ids.SubPerk2,
	})

	// 1 + 2*2^14 + 3*2^28 + 4*2^42 + 5*2^56 + 6*2^70.
	want, ok := new(big.Int).SetString("7083910029867648843777", 10)
	require.True(t, ok)
	require.Zero(t, want.Cmp(ids.PerkComboKey))
}

func TestPerkComboKeyExceedsInt64(t *testing.T) {
	key := PerkComboKey([]int{8112, 8126, 8138, 8135, 8275, 8232})
	require.Greater(t, key.BitLen(), 64)
	require.Zero(t, PerkComboKey(nil).Sign())
}

func TestParseNonTimelineSoftFail(t *testing.T) {
	p := NewNonTimelineParser(zap.NewNop(), false)
	tables, err := p.Parse([]byte(`{"metadata":{},"info":{}}`))
	require.NoError(t, err)
	require.Empty(t, tables.Metadata)
	require.Empty(t, tables.Stats)
}

func TestParseNonTimelineStrict(t *testing.T) {
	p := NewNonTimelineParser(zap.NewNop(), true)
	_, err := p.Parse([]byte(`{"metadata":{},"info":{}}`))
	require.Error(t, err)
}

func TestSplitVersionShort(t *testing.T) {
	season, patch, sub := splitVersion("15.1")
	require.Equal(t, "unknown", season)
	require.Equal(t, "unknown", patch)
	require.Equal(t, "unknown", sub)
}
