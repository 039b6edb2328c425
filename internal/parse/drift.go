package parse

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// Issue is one first-seen drift observation.
type Issue struct {
	SchemaKey string
	Path      string
	ErrorType string
	Message   string
	Example   string
}

// nodeSchema registers one path inside a payload with the key set an
// object at that path is expected to carry, taken from a model struct's
// json tags, a literal key list, or both. Path segments use "*" to fan
// out over list elements.
type nodeSchema struct {
	key          string
	path         []string
	model        reflect.Type
	keys         []string
	optionalPath bool
}

var featKeys = []string{"EPIC_MONSTER_KILL", "FIRST_BLOOD", "FIRST_TURRET"}

var objectiveKeys = []string{
	"atakhan", "baron", "champion", "dragon",
	"horde", "inhibitor", "riftHerald", "tower",
}

// challengeKeys is the known challenge vocabulary; anything outside it
// is drift worth a look before the open challenge map hides it.
var challengeKeys = []string{
	"12AssistStreakCount", "HealFromMapSources", "InfernalScalePickup",
	"PlayerBehavior", "SWARM_DefeatAatrox", "SWARM_DefeatBriar",
	"SWARM_DefeatMiniBosses", "SWARM_EvolveWeapon", "SWARM_Have3Passives",
	"SWARM_KillEnemy", "SWARM_PickupGold", "SWARM_ReachLevel50",
	"SWARM_Survive15Min", "SWARM_WinWith5EvolvedWeapons", "abilityUses",
	"acesBefore15Minutes", "alliedJungleMonsterKills",
	"baronBuffGoldAdvantageOverThreshold", "baronTakedowns",
	"blastConeOppositeOpponentCount", "bountyGold", "buffsStolen",
	"completeSupportQuestInTime", "controlWardTimeCoverageInRiverOrEnemyHalf",
	"controlWardsPlaced", "damagePerMinute", "damageTakenOnTeamPercentage",
	"dancedWithRiftHerald", "deathsByEnemyChamps", "dodgeSkillShotsSmallWindow",
	"doubleAces", "dragonTakedowns", "earliestBaron", "earliestDragonTakedown",
	"earliestElderDragon", "earlyLaningPhaseGoldExpAdvantage",
	"effectiveHealAndShielding", "elderDragonKillsWithOpposingSoul",
	"elderDragonMultikills", "enemyChampionImmobilizations",
	"enemyJungleMonsterKills", "epicMonsterKillsNearEnemyJungler",
	"epicMonsterKillsWithin30SecondsOfSpawn", "epicMonsterSteals",
	"epicMonsterStolenWithoutSmite", "fasterSupportQuestCompletion",
	"fastestLegendary", "firstTurretKilled", "firstTurretKilledTime",
	"fistBumpParticipation", "flawlessAces", "fullTeamTakedown", "gameLength",
	"getTakedownsInAllLanesEarlyJungleAsLaner", "goldPerMinute",
	"hadAfkTeammate", "hadOpenNexus", "highestChampionDamage",
	"highestCrowdControlScore", "highestWardKills", "immobilizeAndKillWithAlly",
	"initialBuffCount", "initialCrabCount", "jungleCsBefore10Minutes",
	"junglerKillsEarlyJungle", "junglerTakedownsNearDamagedEpicMonster",
	"kTurretsDestroyedBeforePlatesFall", "kda", "killAfterHiddenWithAlly",
	"killParticipation", "killedChampTookFullTeamDamageSurvived",
	"killingSprees", "killsNearEnemyTurret", "killsOnLanersEarlyJungleAsJungler",
	"killsOnOtherLanesEarlyJungleAsLaner", "killsOnRecentlyHealedByAramPack",
	"killsUnderOwnTurret", "killsWithHelpFromEpicMonster",
	"knockEnemyIntoTeamAndKill", "landSkillShotsEarlyGame",
	"laneMinionsFirst10Minutes", "laningPhaseGoldExpAdvantage",
	"legendaryCount", "legendaryItemUsed", "lostAnInhibitor",
	"maxCsAdvantageOnLaneOpponent", "maxKillDeficit", "maxLevelLeadLaneOpponent",
	"mejaisFullStackInTime", "moreEnemyJungleThanOpponent", "multiKillOneSpell",
	"multiTurretRiftHeraldCount", "multikills", "multikillsAfterAggressiveFlash",
	"outerTurretExecutesBefore10Minutes", "outnumberedKills",
	"outnumberedNexusKill", "perfectDragonSoulsTaken", "perfectGame",
	"pickKillWithAlly", "playedChampSelectPosition", "poroExplosions",
	"quickCleanse", "quickFirstTurret", "quickSoloKills", "riftHeraldTakedowns",
	"saveAllyFromDeath", "scuttleCrabKills", "shortestTimeToAceFromFirstTakedown",
	"skillshotsDodged", "skillshotsHit", "snowballsHit", "soloBaronKills",
	"soloKills", "soloTurretsLategame", "stealthWardsPlaced",
	"survivedSingleDigitHpCount", "survivedThreeImmobilizesInFight",
	"takedownOnFirstTurret", "takedowns", "takedownsAfterGainingLevelAdvantage",
	"takedownsBeforeJungleMinionSpawn", "takedownsFirstXMinutes",
	"takedownsInAlcove", "takedownsInEnemyFountain", "teamBaronKills",
	"teamDamagePercentage", "teamElderDragonKills", "teamRiftHeraldKills",
	"teleportTakedowns", "thirdInhibitorDestroyedTime",
	"tookLargeDamageSurvived", "turretPlatesTaken", "turretTakedowns",
	"turretsTakenWithRiftHerald", "twentyMinionsIn3SecondsCount",
	"twoWardsOneSweeperCount", "unseenRecalls",
	"visionScoreAdvantageLaneOpponent", "visionScorePerMinute",
	"voidMonsterKill", "wardTakedowns", "wardTakedownsBefore20M", "wardsGuarded",
}

var nonTimelineRegistry = []nodeSchema{
	{key: "metadata", path: []string{"metadata"}, model: reflect.TypeOf(Metadata{})},
	{key: "info", path: []string{"info"}, model: reflect.TypeOf(Info{})},
	{key: "bans", path: []string{"info", "teams", "*", "bans", "*"}, model: reflect.TypeOf(Ban{})},
	{key: "feats", path: []string{"info", "teams", "*", "feats"}, keys: featKeys, optionalPath: true},
	{key: "objectives", path: []string{"info", "teams", "*", "objectives"}, keys: objectiveKeys},
	{key: "participants", path: []string{"info", "participants", "*"}, model: reflect.TypeOf(Participant{})},
	{key: "challenges", path: []string{"info", "participants", "*", "challenges"}, keys: challengeKeys},
	{key: "perks", path: []string{"info", "participants", "*", "perks"}, model: reflect.TypeOf(Perks{})},
}

// eventSchema is the expected key set of one timeline event type.
type eventSchema struct {
	required []string
	optional []string
}

var timelineEventRegistry = map[string]eventSchema{
	"ITEM_PURCHASED": {required: []string{"timestamp", "type", "participantId", "itemId"}},
	"ITEM_UNDO":      {required: []string{"timestamp", "type", "afterId", "beforeId", "goldGain", "participantId"}},
	"ITEM_DESTROYED": {required: []string{"timestamp", "type", "itemId", "participantId"}},
	"ITEM_SOLD":      {required: []string{"timestamp", "type", "itemId", "participantId"}},
	"SKILL_LEVEL_UP": {required: []string{"timestamp", "type", "levelUpType", "participantId", "skillSlot"}},
	"LEVEL_UP":       {required: []string{"timestamp", "type", "level", "participantId"}},
	"WARD_PLACED":    {required: []string{"timestamp", "type", "creatorId", "wardType"}},
	"WARD_KILL":      {required: []string{"timestamp", "type", "killerId", "wardType"}, optional: []string{"creatorId"}},
	"GAME_END":       {required: []string{"timestamp", "type", "winningTeam", "realTimestamp"}, optional: []string{"gameId"}},
	"PAUSE_END":      {required: []string{"timestamp", "type", "realTimestamp"}},
	"CHAMPION_KILL": {
		required: []string{"timestamp", "type", "bounty", "killStreakLength", "killerId", "position", "shutdownBounty", "victimId"},
		optional: []string{"victimDamageDealt", "victimDamageReceived", "victimTeamfightDamageDealt", "victimTeamfightDamageReceived", "assistingParticipantIds"},
	},
	"CHAMPION_SPECIAL_KILL": {
		required: []string{"timestamp", "type", "killType", "killerId", "position"},
		optional: []string{"multiKillLength"},
	},
	"DRAGON_SOUL_GIVEN": {required: []string{"timestamp", "type", "name", "teamId"}},
	"ELITE_MONSTER_KILL": {
		required: []string{"timestamp", "type", "bounty", "killerId", "killerTeamId", "monsterType", "position"},
		optional: []string{"assistingParticipantIds", "monsterSubType"},
	},
	"TURRET_PLATE_DESTROYED": {required: []string{"timestamp", "type", "killerId", "laneType", "position", "teamId"}},
	"BUILDING_KILL": {
		required: []string{"timestamp", "type", "bounty", "buildingType", "killerId", "laneType", "position", "teamId"},
		optional: []string{"towerType", "assistingParticipantIds"},
	},
	"OBJECTIVE_BOUNTY_PRESTART": {required: []string{"timestamp", "type", "actualStartTime", "teamId"}},
	"OBJECTIVE_BOUNTY_FINISH":   {required: []string{"timestamp", "type", "teamId"}},
	"FEAT_UPDATE":               {required: []string{"timestamp", "type", "featType", "featValue", "teamId"}},
	"CHAMPION_TRANSFORM":        {required: []string{"timestamp", "type", "participantId", "transformType"}},
	"UNKNOWN":                   {required: []string{"timestamp", "type"}, optional: []string{"originalType"}},
}

// jsonKeys collects the json tag of every exported field, flattening
// embedded structs, so the expected key sets track the schema structs
// instead of a hand-maintained copy.
func jsonKeys(t reflect.Type, into map[string]struct{}) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			jsonKeys(f.Type, into)
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		into[tag] = struct{}{}
	}
}

// Detector walks payloads against the registered schemas and logs one
// structured warning per scan summarizing first-seen drift. It never
// mutates or rejects data.
type Detector struct {
	log      *zap.Logger
	expected map[string]map[string]struct{}
}

// NewDetector builds a drift detector.
func NewDetector(log *zap.Logger) *Detector {
	expected := make(map[string]map[string]struct{})
	for _, s := range nonTimelineRegistry {
		keys := make(map[string]struct{})
		if s.model != nil {
			jsonKeys(s.model, keys)
		}
		for _, k := range s.keys {
			keys[k] = struct{}{}
		}
		expected[s.key] = keys
	}
	return &Detector{log: log.Named("drift"), expected: expected}
}

// ScanNonTimeline checks one non-timeline payload.
func (d *Detector) ScanNonTimeline(raw []byte, matchID, date string) []Issue {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}

	var issues []Issue
	for _, schema := range nonTimelineRegistry {
		nodes, pathIssue := resolvePath(root, schema.path)
		if pathIssue != nil {
			if schema.optionalPath {
				continue
			}
			pathIssue.SchemaKey = schema.key
			issues = append(issues, *pathIssue)
			continue
		}

		firstSeen := map[string]bool{}
		for _, n := range nodes {
			obj, ok := n.value.(map[string]any)
			if !ok {
				if !firstSeen["__node_not_object__"] {
					firstSeen["__node_not_object__"] = true
					issues = append(issues, Issue{
						SchemaKey: schema.key,
						Path:      n.path,
						ErrorType: "node_not_object",
						Message:   fmt.Sprintf("resolved node at %q is not an object", n.path),
					})
				}
				continue
			}
			for _, key := range sortedKeys(obj) {
				if _, expected := d.expected[schema.key][key]; expected || firstSeen[key] {
					continue
				}
				firstSeen[key] = true
				issues = append(issues, Issue{
					SchemaKey: schema.key,
					Path:      n.path + "." + key,
					ErrorType: "unexpected_key",
					Message:   fmt.Sprintf("unexpected key %q at %q", key, n.path),
					Example:   previewAny(obj[key]),
				})
			}
		}
	}

	d.report("non_timeline", matchID, date, issues)
	return issues
}

// ScanTimeline checks one timeline payload, dispatching events by
// their type discriminator.
func (d *Detector) ScanTimeline(raw []byte, matchID, date string) []Issue {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}

	var issues []Issue
	nodes, pathIssue := resolvePath(root, []string{"info", "frames", "*", "events", "*"})
	if pathIssue != nil {
		pathIssue.SchemaKey = "events"
		issues = append(issues, *pathIssue)
		d.report("timeline", matchID, date, issues)
		return issues
	}

	firstSeen := map[string]bool{}
	record := func(key string, issue Issue) {
		if firstSeen[key] {
			return
		}
		firstSeen[key] = true
		issue.SchemaKey = "events"
		issues = append(issues, issue)
	}

	for _, n := range nodes {
		event, ok := n.value.(map[string]any)
		if !ok {
			record("event_not_object", Issue{
				Path:      n.path,
				ErrorType: "event_not_object",
				Message:   fmt.Sprintf("event at %q is not an object", n.path),
			})
			continue
		}

		eventType, ok := event["type"].(string)
		if !ok {
			record("missing_event_type", Issue{
				Path:      n.path,
				ErrorType: "missing_event_type",
				Message:   fmt.Sprintf("event at %q has no string type", n.path),
			})
			continue
		}

		schema, known := timelineEventRegistry[eventType]
		if !known {
			record("unknown_event_type:"+eventType, Issue{
				Path:      n.path + ".type",
				ErrorType: "unknown_event_type",
				Message:   fmt.Sprintf("unknown event type %q at %q", eventType, n.path),
			})
			continue
		}

		expected := map[string]struct{}{}
		for _, k := range schema.required {
			expected[k] = struct{}{}
		}
		for _, k := range schema.optional {
			expected[k] = struct{}{}
		}

		for _, key := range sortedKeys(event) {
			if _, ok := expected[key]; ok {
				continue
			}
			record(eventType+":unexpected_key:"+key, Issue{
				Path:      n.path + "." + key,
				ErrorType: "unexpected_key",
				Message:   fmt.Sprintf("unexpected key %q for event type %q", key, eventType),
				Example:   previewAny(event[key]),
			})
		}
		for _, key := range schema.required {
			if _, ok := event[key]; ok {
				continue
			}
			record(eventType+":missing_required_key:"+key, Issue{
				Path:      n.path,
				ErrorType: "missing_required_key",
				Message:   fmt.Sprintf("missing required key %q for event type %q", key, eventType),
			})
		}
	}

	d.report("timeline", matchID, date, issues)
	return issues
}

func (d *Detector) report(payload, matchID, date string, issues []Issue) {
	if len(issues) == 0 {
		return
	}
	messages := make([]string, 0, len(issues))
	for _, is := range issues {
		messages = append(messages, fmt.Sprintf("%s:%s - %s", is.SchemaKey, is.Path, is.Message))
	}
	d.log.Warn("schema drift",
		zap.String("payload", payload),
		zap.String("match_id", matchID),
		zap.String("drift_date", date),
		zap.Int("drift_count", len(issues)),
		zap.Strings("keys", messages))
}

type resolvedNode struct {
	path  string
	value any
}

// resolvePath walks raw along path, fanning out at "*" over list
// elements. The first structural mismatch aborts the walk.
func resolvePath(raw any, path []string) ([]resolvedNode, *Issue) {
	nodes := []resolvedNode{{path: "$", value: raw}}

	for _, token := range path {
		var next []resolvedNode
		for _, n := range nodes {
			if token == "*" {
				list, ok := n.value.([]any)
				if !ok {
					return nil, &Issue{
						Path:      n.path,
						ErrorType: "expected_list_for_wildcard",
						Message:   fmt.Sprintf("expected list at %q for wildcard", n.path),
					}
				}
				for i, item := range list {
					next = append(next, resolvedNode{path: fmt.Sprintf("%s[%d]", n.path, i), value: item})
				}
				continue
			}

			obj, ok := n.value.(map[string]any)
			if !ok {
				return nil, &Issue{
					Path:      n.path,
					ErrorType: "expected_object_for_field",
					Message:   fmt.Sprintf("expected object at %q before field %q", n.path, token),
				}
			}
			child, ok := obj[token]
			if !ok {
				return nil, &Issue{
					Path:      n.path,
					ErrorType: "missing_path_segment",
					Message:   fmt.Sprintf("missing field %q while resolving %q", token, strings.Join(path, ".")),
				}
			}
			next = append(next, resolvedNode{path: n.path + "." + token, value: child})
		}
		nodes = next
	}
	return nodes, nil
}

func previewAny(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
