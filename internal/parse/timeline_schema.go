package parse

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// TimelinePayload is the validated shape of a timeline payload.
type TimelinePayload struct {
	Metadata Metadata     `json:"metadata"`
	Info     TimelineInfo `json:"info"`
}

// TimelineInfo is the timeline body; events stay raw until the parser
// dispatches them by type.
type TimelineInfo struct {
	EndOfGameResult string  `json:"endOfGameResult"`
	FrameInterval   int64   `json:"frameInterval"`
	GameID          int64   `json:"gameId"`
	Frames          []Frame `json:"frames"`
}

// Frame is one timeline frame.
type Frame struct {
	Events            []jsoniter.RawMessage       `json:"events"`
	ParticipantFrames map[string]ParticipantFrame `json:"participantFrames"`
	Timestamp         int64                       `json:"timestamp"`
}

// Position is a map coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChampionStats is the per-frame champion stat block.
type ChampionStats struct {
	AbilityHaste         int `json:"abilityHaste"`
	AbilityPower         int `json:"abilityPower"`
	Armor                int `json:"armor"`
	ArmorPen             int `json:"armorPen"`
	ArmorPenPercent      int `json:"armorPenPercent"`
	AttackDamage         int `json:"attackDamage"`
	AttackSpeed          int `json:"attackSpeed"`
	BonusArmorPenPercent int `json:"bonusArmorPenPercent"`
	BonusMagicPenPercent int `json:"bonusMagicPenPercent"`
	CCReduction          int `json:"ccReduction"`
	CooldownReduction    int `json:"cooldownReduction"`
	Health               int `json:"health"`
	HealthMax            int `json:"healthMax"`
	HealthRegen          int `json:"healthRegen"`
	Lifesteal            int `json:"lifesteal"`
	MagicPen             int `json:"magicPen"`
	MagicPenPercent      int `json:"magicPenPercent"`
	MagicResist          int `json:"magicResist"`
	MovementSpeed        int `json:"movementSpeed"`
	Omnivamp             int `json:"omnivamp"`
	PhysicalVamp         int `json:"physicalVamp"`
	Power                int `json:"power"`
	PowerMax             int `json:"powerMax"`
	PowerRegen           int `json:"powerRegen"`
	SpellVamp            int `json:"spellVamp"`
}

// DamageStats is the per-frame damage stat block.
type DamageStats struct {
	MagicDamageDone               int `json:"magicDamageDone"`
	MagicDamageDoneToChampions    int `json:"magicDamageDoneToChampions"`
	MagicDamageTaken              int `json:"magicDamageTaken"`
	PhysicalDamageDone            int `json:"physicalDamageDone"`
	PhysicalDamageDoneToChampions int `json:"physicalDamageDoneToChampions"`
	PhysicalDamageTaken           int `json:"physicalDamageTaken"`
	TotalDamageDone               int `json:"totalDamageDone"`
	TotalDamageDoneToChampions    int `json:"totalDamageDoneToChampions"`
	TotalDamageTaken              int `json:"totalDamageTaken"`
	TrueDamageDone                int `json:"trueDamageDone"`
	TrueDamageDoneToChampions     int `json:"trueDamageDoneToChampions"`
	TrueDamageTaken               int `json:"trueDamageTaken"`
}

// ParticipantFrame is one participant's state within a frame.
type ParticipantFrame struct {
	ChampionStats            ChampionStats `json:"championStats"`
	CurrentGold              int           `json:"currentGold"`
	DamageStats              DamageStats   `json:"damageStats"`
	GoldPerSecond            int           `json:"goldPerSecond"`
	JungleMinionsKilled      int           `json:"jungleMinionsKilled"`
	Level                    int           `json:"level"`
	MinionsKilled            int           `json:"minionsKilled"`
	ParticipantID            int           `json:"participantId"`
	Position                 *Position     `json:"position"`
	TimeEnemySpentControlled int           `json:"timeEnemySpentControlled"`
	TotalGold                int           `json:"totalGold"`
	XP                       int           `json:"xp"`
}

// DamageInstance is one entry of a champion-kill damage list.
type DamageInstance struct {
	Basic          bool   `json:"basic"`
	MagicDamage    int    `json:"magicDamage"`
	Name           string `json:"name"`
	ParticipantID  int    `json:"participantId"`
	PhysicalDamage int    `json:"physicalDamage"`
	SpellName      string `json:"spellName"`
	SpellSlot      int    `json:"spellSlot"`
	TrueDamage     int    `json:"trueDamage"`
	Type           string `json:"type"`
}

// eventHead is the discriminator every event carries.
type eventHead struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Typed shapes for the rich event tables.

type eventBuildingKill struct {
	Timestamp               int64     `json:"timestamp"`
	Bounty                  int       `json:"bounty"`
	BuildingType            string    `json:"buildingType"`
	KillerID                int       `json:"killerId"`
	LaneType                string    `json:"laneType"`
	Position                *Position `json:"position"`
	TeamID                  int       `json:"teamId"`
	TowerType               string    `json:"towerType"`
	AssistingParticipantIDs []int     `json:"assistingParticipantIds"`
}

type eventChampionKill struct {
	Timestamp               int64            `json:"timestamp"`
	Bounty                  int              `json:"bounty"`
	KillStreakLength        int              `json:"killStreakLength"`
	KillerID                int              `json:"killerId"`
	VictimID                int              `json:"victimId"`
	ShutdownBounty          int              `json:"shutdownBounty"`
	Position                *Position        `json:"position"`
	AssistingParticipantIDs []int            `json:"assistingParticipantIds"`
	VictimDamageDealt       []DamageInstance `json:"victimDamageDealt"`
	VictimDamageReceived    []DamageInstance `json:"victimDamageReceived"`
	// Teamfight variants are alias keys for the same lists.
	VictimTeamfightDamageDealt    []DamageInstance `json:"victimTeamfightDamageDealt"`
	VictimTeamfightDamageReceived []DamageInstance `json:"victimTeamfightDamageReceived"`
}

type eventChampionSpecialKill struct {
	Timestamp       int64     `json:"timestamp"`
	KillType        string    `json:"killType"`
	KillerID        int       `json:"killerId"`
	MultiKillLength int       `json:"multiKillLength"`
	Position        *Position `json:"position"`
}

type eventDragonSoulGiven struct {
	Timestamp int64  `json:"timestamp"`
	Name      string `json:"name"`
	TeamID    int    `json:"teamId"`
}

type eventEliteMonsterKill struct {
	Timestamp               int64     `json:"timestamp"`
	Bounty                  int       `json:"bounty"`
	KillerID                int       `json:"killerId"`
	KillerTeamID            int       `json:"killerTeamId"`
	MonsterType             string    `json:"monsterType"`
	MonsterSubType          string    `json:"monsterSubType"`
	Position                *Position `json:"position"`
	AssistingParticipantIDs []int     `json:"assistingParticipantIds"`
}

type eventTurretPlateDestroyed struct {
	Timestamp int64     `json:"timestamp"`
	KillerID  int       `json:"killerId"`
	LaneType  string    `json:"laneType"`
	Position  *Position `json:"position"`
	TeamID    int       `json:"teamId"`
}

func (t *TimelinePayload) validate() error {
	if t.Metadata.MatchID == "" {
		return fmt.Errorf("parse: metadata.matchId is empty")
	}
	if t.Info.GameID <= 0 {
		return fmt.Errorf("parse: info.gameId is missing")
	}
	if t.Info.Frames == nil {
		return fmt.Errorf("parse: info.frames is missing")
	}
	return nil
}
