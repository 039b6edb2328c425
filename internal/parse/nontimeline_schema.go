package parse

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Match is the validated shape of a non-timeline payload.
type Match struct {
	Metadata Metadata `json:"metadata"`
	Info     Info     `json:"info"`
}

// Metadata identifies the match and its participants.
type Metadata struct {
	DataVersion  string   `json:"dataVersion"`
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

// Info is the match body.
type Info struct {
	EndOfGameResult    string        `json:"endOfGameResult"`
	GameCreation       int64         `json:"gameCreation"`
	GameDuration       int64         `json:"gameDuration"`
	GameEndTimestamp   int64         `json:"gameEndTimestamp"`
	GameID             int64         `json:"gameId"`
	GameMode           string        `json:"gameMode"`
	GameName           string        `json:"gameName"`
	GameStartTimestamp int64         `json:"gameStartTimestamp"`
	GameType           string        `json:"gameType"`
	GameVersion        string        `json:"gameVersion"`
	MapID              int           `json:"mapId"`
	Participants       []Participant `json:"participants"`
	PlatformID         string        `json:"platformId"`
	QueueID            int           `json:"queueId"`
	Teams              []Team        `json:"teams"`
	TournamentCode     string        `json:"tournamentCode"`
}

// Team carries the per-team aggregates.
type Team struct {
	Bans       []Ban               `json:"bans"`
	Feats      map[string]Feat     `json:"feats"`
	Objectives map[string]ObjStats `json:"objectives"`
	TeamID     int                 `json:"teamId"`
	Win        bool                `json:"win"`
}

// Ban is one champion ban.
type Ban struct {
	ChampionID int `json:"championId"`
	PickTurn   int `json:"pickTurn"`
}

// Feat is one team feat state.
type Feat struct {
	FeatState int `json:"featState"`
}

// ObjStats is one team objective aggregate.
type ObjStats struct {
	First bool `json:"first"`
	Kills int  `json:"kills"`
}

// StatPerks are the three stat shard choices.
type StatPerks struct {
	Defense int `json:"defense"`
	Flex    int `json:"flex"`
	Offense int `json:"offense"`
}

// PerkSelection is one rune with its three vars.
type PerkSelection struct {
	Perk int `json:"perk"`
	Var1 int `json:"var1"`
	Var2 int `json:"var2"`
	Var3 int `json:"var3"`
}

// PerkStyle is one rune tree with its selections.
type PerkStyle struct {
	Description string          `json:"description"`
	Selections  []PerkSelection `json:"selections"`
	Style       int             `json:"style"`
}

// Perks is the participant rune page.
type Perks struct {
	StatPerks StatPerks   `json:"statPerks"`
	Styles    []PerkStyle `json:"styles"`
}

// ParticipantCore holds the fields that survive into the stats table.
// Fields listed in Participant instead are dropped or routed to their
// own tables.
type ParticipantCore struct {
	ParticipantID int    `json:"participantId"`
	PUUID         string `json:"puuid"`
	TeamID        int    `json:"teamId"`

	SummonerLevel int    `json:"summonerLevel"`
	SummonerName  string `json:"summonerName"`

	RiotIDGameName string `json:"riotIdGameName"`
	RiotIDTagline  string `json:"riotIdTagline"`

	ProfileIcon int `json:"profileIcon"`

	ChampionID        int `json:"championId"`
	ChampionTransform int `json:"championTransform"`

	ChampLevel      int `json:"champLevel"`
	ChampExperience int `json:"champExperience"`

	TeamPosition string `json:"teamPosition"`

	Win                       bool `json:"win"`
	GameEndedInEarlySurrender bool `json:"gameEndedInEarlySurrender"`
	GameEndedInSurrender      bool `json:"gameEndedInSurrender"`
	TeamEarlySurrendered      bool `json:"teamEarlySurrendered"`

	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`

	DoubleKills int `json:"doubleKills"`
	TripleKills int `json:"tripleKills"`
	QuadraKills int `json:"quadraKills"`
	PentaKills  int `json:"pentaKills"`
	UnrealKills int `json:"unrealKills"`

	KillingSprees         int `json:"killingSprees"`
	LargestKillingSpree   int `json:"largestKillingSpree"`
	LargestMultiKill      int `json:"largestMultiKill"`
	LargestCriticalStrike int `json:"largestCriticalStrike"`

	FirstBloodKill   bool `json:"firstBloodKill"`
	FirstBloodAssist bool `json:"firstBloodAssist"`
	FirstTowerKill   bool `json:"firstTowerKill"`
	FirstTowerAssist bool `json:"firstTowerAssist"`

	GoldEarned           int `json:"goldEarned"`
	GoldSpent            int `json:"goldSpent"`
	ConsumablesPurchased int `json:"consumablesPurchased"`
	ItemsPurchased       int `json:"itemsPurchased"`

	Item0 int `json:"item0"`
	Item1 int `json:"item1"`
	Item2 int `json:"item2"`
	Item3 int `json:"item3"`
	Item4 int `json:"item4"`
	Item5 int `json:"item5"`
	Item6 int `json:"item6"`

	TotalDamageDealt               int `json:"totalDamageDealt"`
	TotalDamageDealtToChampions    int `json:"totalDamageDealtToChampions"`
	PhysicalDamageDealt            int `json:"physicalDamageDealt"`
	PhysicalDamageDealtToChampions int `json:"physicalDamageDealtToChampions"`
	MagicDamageDealt               int `json:"magicDamageDealt"`
	MagicDamageDealtToChampions    int `json:"magicDamageDealtToChampions"`
	TrueDamageDealt                int `json:"trueDamageDealt"`
	TrueDamageDealtToChampions     int `json:"trueDamageDealtToChampions"`

	DamageDealtToBuildings    int `json:"damageDealtToBuildings"`
	DamageDealtToTurrets      int `json:"damageDealtToTurrets"`
	DamageDealtToObjectives   int `json:"damageDealtToObjectives"`
	DamageDealtToEpicMonsters int `json:"damageDealtToEpicMonsters"`

	TotalDamageTaken    int `json:"totalDamageTaken"`
	PhysicalDamageTaken int `json:"physicalDamageTaken"`
	MagicDamageTaken    int `json:"magicDamageTaken"`
	TrueDamageTaken     int `json:"trueDamageTaken"`

	DamageSelfMitigated int `json:"damageSelfMitigated"`

	TotalHeal             int `json:"totalHeal"`
	TotalHealsOnTeammates int `json:"totalHealsOnTeammates"`
	TotalUnitsHealed      int `json:"totalUnitsHealed"`

	TotalDamageShieldedOnTeammates int `json:"totalDamageShieldedOnTeammates"`

	TimeCCingOthers  int `json:"timeCCingOthers"`
	TotalTimeCCDealt int `json:"totalTimeCCDealt"`

	TotalMinionsKilled            int `json:"totalMinionsKilled"`
	NeutralMinionsKilled          int `json:"neutralMinionsKilled"`
	TotalAllyJungleMinionsKilled  int `json:"totalAllyJungleMinionsKilled"`
	TotalEnemyJungleMinionsKilled int `json:"totalEnemyJungleMinionsKilled"`

	BaronKills  int `json:"baronKills"`
	DragonKills int `json:"dragonKills"`

	InhibitorKills     int `json:"inhibitorKills"`
	InhibitorTakedowns int `json:"inhibitorTakedowns"`
	InhibitorsLost     int `json:"inhibitorsLost"`

	TurretKills     int `json:"turretKills"`
	TurretTakedowns int `json:"turretTakedowns"`
	TurretsLost     int `json:"turretsLost"`

	ObjectivesStolen        int `json:"objectivesStolen"`
	ObjectivesStolenAssists int `json:"objectivesStolenAssists"`

	VisionScore             int `json:"visionScore"`
	WardsPlaced             int `json:"wardsPlaced"`
	WardsKilled             int `json:"wardsKilled"`
	DetectorWardsPlaced     int `json:"detectorWardsPlaced"`
	SightWardsBoughtInGame  int `json:"sightWardsBoughtInGame"`
	VisionWardsBoughtInGame int `json:"visionWardsBoughtInGame"`
	VisionClearedPings      int `json:"visionClearedPings"`

	Summoner1ID    int `json:"summoner1Id"`
	Summoner2ID    int `json:"summoner2Id"`
	Summoner1Casts int `json:"summoner1Casts"`
	Summoner2Casts int `json:"summoner2Casts"`

	Spell1Casts int `json:"spell1Casts"`
	Spell2Casts int `json:"spell2Casts"`
	Spell3Casts int `json:"spell3Casts"`
	Spell4Casts int `json:"spell4Casts"`

	RoleBoundItem int `json:"roleBoundItem"`

	TimePlayed             int `json:"timePlayed"`
	TotalTimeSpentDead     int `json:"totalTimeSpentDead"`
	LongestTimeSpentLiving int `json:"longestTimeSpentLiving"`

	AllInPings        int `json:"allInPings"`
	AssistMePings     int `json:"assistMePings"`
	BasicPings        int `json:"basicPings"`
	CommandPings      int `json:"commandPings"`
	DangerPings       int `json:"dangerPings"`
	EnemyMissingPings int `json:"enemyMissingPings"`
	EnemyVisionPings  int `json:"enemyVisionPings"`
	GetBackPings      int `json:"getBackPings"`
	HoldPings         int `json:"holdPings"`
	NeedVisionPings   int `json:"needVisionPings"`
	OnMyWayPings      int `json:"onMyWayPings"`
	PushPings         int `json:"pushPings"`
	RetreatPings      int `json:"retreatPings"`
}

// Participant is the full payload shape; the extra fields beyond the
// core are dropped from the stats table or routed to the challenge and
// perk tables.
type Participant struct {
	ParticipantCore

	PlayerScore0  int `json:"PlayerScore0"`
	PlayerScore1  int `json:"PlayerScore1"`
	PlayerScore2  int `json:"PlayerScore2"`
	PlayerScore3  int `json:"PlayerScore3"`
	PlayerScore4  int `json:"PlayerScore4"`
	PlayerScore5  int `json:"PlayerScore5"`
	PlayerScore6  int `json:"PlayerScore6"`
	PlayerScore7  int `json:"PlayerScore7"`
	PlayerScore8  int `json:"PlayerScore8"`
	PlayerScore9  int `json:"PlayerScore9"`
	PlayerScore10 int `json:"PlayerScore10"`
	PlayerScore11 int `json:"PlayerScore11"`

	Placement        int `json:"placement"`
	PlayerAugment1   int `json:"playerAugment1"`
	PlayerAugment2   int `json:"playerAugment2"`
	PlayerAugment3   int `json:"playerAugment3"`
	PlayerAugment4   int `json:"playerAugment4"`
	PlayerAugment5   int `json:"playerAugment5"`
	PlayerAugment6   int `json:"playerAugment6"`
	PlayerSubteamID  int `json:"playerSubteamId"`
	SubteamPlacement int `json:"subteamPlacement"`

	NexusKills     int `json:"nexusKills"`
	NexusTakedowns int `json:"nexusTakedowns"`
	NexusLost      int `json:"nexusLost"`

	SummonerID string `json:"summonerId"`

	EligibleForProgression bool   `json:"eligibleForProgression"`
	IndividualPosition     string `json:"individualPosition"`
	Lane                   string `json:"lane"`
	Role                   string `json:"role"`
	ChampionName           string `json:"championName"`

	Missions   jsoniter.RawMessage `json:"missions"`
	Challenges map[string]Value    `json:"challenges"`
	Perks      Perks               `json:"perks"`
}

func (m *Match) validate() error {
	if m.Metadata.MatchID == "" {
		return fmt.Errorf("parse: metadata.matchId is empty")
	}
	if m.Info.GameID <= 0 {
		return fmt.Errorf("parse: info.gameId is missing")
	}
	if m.Info.GameVersion == "" {
		return fmt.Errorf("parse: info.gameVersion is empty")
	}
	if len(m.Info.Participants) == 0 {
		return fmt.Errorf("parse: info.participants is empty")
	}
	for _, t := range m.Info.Teams {
		if t.TeamID != 100 && t.TeamID != 200 {
			return fmt.Errorf("parse: team id %d is not 100 or 200", t.TeamID)
		}
	}
	for i := range m.Info.Participants {
		p := &m.Info.Participants[i]
		if p.PUUID == "" {
			return fmt.Errorf("parse: participant %d has no puuid", i)
		}
		if _, err := p.Perks.styles(); err != nil {
			return fmt.Errorf("parse: participant %s: %w", p.PUUID, err)
		}
	}
	return nil
}

type perkStyles struct {
	primary PerkStyle
	sub     PerkStyle
}

// styles resolves the primary and sub rune trees by description and
// checks the selection counts the perk tables rely on.
func (p Perks) styles() (perkStyles, error) {
	var out perkStyles
	var havePrimary, haveSub bool
	for _, s := range p.Styles {
		switch s.Description {
		case "primaryStyle":
			out.primary, havePrimary = s, true
		case "subStyle":
			out.sub, haveSub = s, true
		}
	}
	if !havePrimary || !haveSub {
		return out, fmt.Errorf("perks missing primaryStyle or subStyle")
	}
	if len(out.primary.Selections) < 4 {
		return out, fmt.Errorf("primaryStyle has %d selections, want 4", len(out.primary.Selections))
	}
	if len(out.sub.Selections) < 2 {
		return out, fmt.Errorf("subStyle has %d selections, want 2", len(out.sub.Selections))
	}
	return out, nil
}
