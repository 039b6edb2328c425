package fetch

import (
	"fmt"
	"strings"

	"github.com/riftdata/pipeline/internal/geo"
)

// Placeholders substituted by the match-id crawler at request time.
const (
	StartPlaceholder   = "{start}"
	EndTimePlaceholder = "{endTime}"
)

// MatchIDPageSize is the page size requested from the match-id
// endpoint; a shorter page marks the end of a player's history.
const MatchIDPageSize = 100

// Endpoints formats upstream URLs. The production form routes by
// location subdomain; tests pin every location to one fixed base.
type Endpoints struct {
	scheme string
	suffix string
	fixed  string
}

// NewEndpoints routes to the public upstream hosts.
func NewEndpoints() Endpoints {
	return Endpoints{scheme: "https", suffix: ".api.riotgames.com"}
}

// NewFixedEndpoints routes every location to base, e.g. an httptest
// server URL.
func NewFixedEndpoints(base string) Endpoints {
	return Endpoints{fixed: strings.TrimRight(base, "/")}
}

func (e Endpoints) root(location string) string {
	if e.fixed != "" {
		return e.fixed
	}
	return e.scheme + "://" + location + e.suffix
}

// EliteList is the list endpoint for one elite tier on one shard.
func (e Endpoints) EliteList(shard geo.Shard, tier geo.EliteTier, queue geo.Queue) string {
	return fmt.Sprintf("%s/lol/league/v4/%sleagues/by-queue/%s",
		e.root(string(shard)), strings.ToLower(string(tier)), queue)
}

// Entries is one page of a divisioned sub-elite bracket on one shard.
func (e Endpoints) Entries(shard geo.Shard, queue geo.Queue, tier geo.Tier, div geo.Division, page int) string {
	return fmt.Sprintf("%s/lol/league/v4/entries/%s/%s/%s?page=%d",
		e.root(string(shard)), queue, tier, div, page)
}

// MatchIDsByPUUID is the per-player match-id page endpoint with the
// {start} and {endTime} placeholders left for the crawler to fill.
func (e Endpoints) MatchIDsByPUUID(super geo.SuperShard, puuid string, queue geo.Queue, startTime int64) string {
	return fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?startTime=%d&endTime=%s&type=ranked&queue=%d&start=%s&count=%d",
		e.root(string(super)), puuid, startTime, EndTimePlaceholder,
		geo.QueueCode[queue], StartPlaceholder, MatchIDPageSize)
}

// Match is the non-timeline payload endpoint for one match id.
func (e Endpoints) Match(super geo.SuperShard, matchID string) string {
	return fmt.Sprintf("%s/lol/match/v5/matches/%s", e.root(string(super)), matchID)
}

// Timeline is the timeline payload endpoint for one match id.
func (e Endpoints) Timeline(super geo.SuperShard, matchID string) string {
	return fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", e.root(string(super)), matchID)
}
