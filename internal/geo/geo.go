// Package geo defines the two-level routing keys used for upstream
// requests: fine-grained shards and the continental super-shards they
// belong to, plus the queue/tier/division enumerations of the ranked
// ladder.
package geo

import (
	"fmt"
	"strings"
)

// Shard is a fine-grained upstream routing key.
type Shard string

const (
	BR1  Shard = "br1"
	LA1  Shard = "la1"
	LA2  Shard = "la2"
	NA1  Shard = "na1"
	EUW1 Shard = "euw1"
	EUN1 Shard = "eun1"
	RU   Shard = "ru"
	TR1  Shard = "tr1"
	ME1  Shard = "me1"
	JP1  Shard = "jp1"
	KR   Shard = "kr"
	TW2  Shard = "tw2"
	OC1  Shard = "oc1"
	VN2  Shard = "vn2"
	SG2  Shard = "sg2"
)

// SuperShard is the coarse continental routing key.
type SuperShard string

const (
	Americas SuperShard = "americas"
	Europe   SuperShard = "europe"
	Asia     SuperShard = "asia"
	Sea      SuperShard = "sea"
)

// Shards lists every shard in a stable order.
var Shards = []Shard{
	BR1, LA1, LA2, NA1,
	EUW1, EUN1, RU, TR1, ME1,
	JP1, KR,
	TW2, OC1, VN2, SG2,
}

// SuperShards lists every super-shard in a stable order.
var SuperShards = []SuperShard{Americas, Europe, Asia, Sea}

var shardToSuper = map[Shard]SuperShard{
	BR1:  Americas,
	LA1:  Americas,
	LA2:  Americas,
	NA1:  Americas,
	EUW1: Europe,
	EUN1: Europe,
	RU:   Europe,
	TR1:  Europe,
	ME1:  Europe,
	JP1:  Asia,
	KR:   Asia,
	TW2:  Sea,
	OC1:  Sea,
	VN2:  Sea,
	SG2:  Sea,
}

// SuperShardOf returns the super-shard a shard routes through.
func SuperShardOf(s Shard) SuperShard {
	return shardToSuper[s]
}

// ParseShard converts a raw shard name (any case) to a known Shard.
func ParseShard(raw string) (Shard, error) {
	s := Shard(strings.ToLower(raw))
	if _, ok := shardToSuper[s]; !ok {
		return "", fmt.Errorf("geo: unknown shard %q", raw)
	}
	return s, nil
}

// ShardOfMatchID derives the shard from a match id. The prefix before
// the first underscore names the shard, e.g. "EUW1_7001234567".
func ShardOfMatchID(matchID string) (Shard, error) {
	prefix, _, ok := strings.Cut(matchID, "_")
	if !ok {
		return "", fmt.Errorf("geo: match id %q has no shard prefix", matchID)
	}
	return ParseShard(prefix)
}

// Queue identifies a ranked queue.
type Queue string

const (
	QueueSolo Queue = "RANKED_SOLO_5x5"
	QueueFlex Queue = "RANKED_FLEX_SR"
)

// Queues lists the collected queues.
var Queues = []Queue{QueueSolo, QueueFlex}

// QueueCode maps a queue to the numeric code used by the match-id
// endpoint.
var QueueCode = map[Queue]int{
	QueueSolo: 420,
	QueueFlex: 440,
}

// EliteTier is one of the list-endpoint tiers, ordered best first.
type EliteTier string

const (
	Challenger  EliteTier = "CHALLENGER"
	Grandmaster EliteTier = "GRANDMASTER"
	Master      EliteTier = "MASTER"
)

// EliteTiers is the elite tier order, best first.
var EliteTiers = []EliteTier{Challenger, Grandmaster, Master}

// Tier is a sub-elite (divisioned) tier, ordered best first.
type Tier string

const (
	Diamond  Tier = "DIAMOND"
	Emerald  Tier = "EMERALD"
	Platinum Tier = "PLATINUM"
	Gold     Tier = "GOLD"
	Silver   Tier = "SILVER"
	Bronze   Tier = "BRONZE"
	Iron     Tier = "IRON"
)

// Tiers is the sub-elite tier order, best first.
var Tiers = []Tier{Diamond, Emerald, Platinum, Gold, Silver, Bronze, Iron}

// Division subdivides a sub-elite tier.
type Division string

const (
	DivI   Division = "I"
	DivII  Division = "II"
	DivIII Division = "III"
	DivIV  Division = "IV"
)

// Divisions is the division order, best first.
var Divisions = []Division{DivI, DivII, DivIII, DivIV}

// Bracket is a (tier, division) pair of the sub-elite ladder.
type Bracket struct {
	Tier     Tier
	Division Division
}

// Brackets returns every (tier, division) pair ordered
// lexicographically by (tier, division), best first.
func Brackets() []Bracket {
	out := make([]Bracket, 0, len(Tiers)*len(Divisions))
	for _, t := range Tiers {
		for _, d := range Divisions {
			out = append(out, Bracket{Tier: t, Division: d})
		}
	}
	return out
}
