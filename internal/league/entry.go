package league

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/riftdata/pipeline/internal/geo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is the minified ladder record the players stage persists.
type Entry struct {
	PUUID      string
	Queue      geo.Queue
	Tier       string
	Division   string
	Wins       int
	Losses     int
	Shard      geo.Shard
	SuperShard geo.SuperShard
}

// leagueItem is one entry of an elite list response. The division
// lives in the rank field.
type leagueItem struct {
	PUUID        string `json:"puuid"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	FreshBlood   bool   `json:"freshBlood"`
	Inactive     bool   `json:"inactive"`
	Veteran      bool   `json:"veteran"`
	HotStreak    bool   `json:"hotStreak"`
}

func (i leagueItem) validate() error {
	if i.PUUID == "" {
		return fmt.Errorf("league: entry missing puuid")
	}
	if i.Rank == "" {
		return fmt.Errorf("league: entry missing rank")
	}
	return nil
}

// leagueList is an elite list response.
type leagueList struct {
	LeagueID string       `json:"leagueId"`
	Entries  []leagueItem `json:"entries"`
	Tier     string       `json:"tier"`
	Name     string       `json:"name"`
	Queue    string       `json:"queue"`
}

func (l leagueList) validate() error {
	if l.LeagueID == "" || l.Tier == "" || l.Queue == "" {
		return fmt.Errorf("league: list missing leagueId, tier or queue")
	}
	for _, e := range l.Entries {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

// leagueEntry is one record of a divisioned entries page.
type leagueEntry struct {
	LeagueID     string `json:"leagueId"`
	PUUID        string `json:"puuid"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	HotStreak    bool   `json:"hotStreak"`
	Veteran      bool   `json:"veteran"`
	FreshBlood   bool   `json:"freshBlood"`
	Inactive     bool   `json:"inactive"`
}

func (e leagueEntry) validate() error {
	if e.PUUID == "" || e.Tier == "" || e.Rank == "" || e.QueueType == "" {
		return fmt.Errorf("league: record missing puuid, queueType, tier or rank")
	}
	return nil
}

func entryFromItem(it leagueItem, list leagueList, queue geo.Queue, shard geo.Shard) Entry {
	return Entry{
		PUUID:      it.PUUID,
		Queue:      queue,
		Tier:       list.Tier,
		Division:   it.Rank,
		Wins:       it.Wins,
		Losses:     it.Losses,
		Shard:      shard,
		SuperShard: geo.SuperShardOf(shard),
	}
}

func entryFromRecord(rec leagueEntry, shard geo.Shard) Entry {
	return Entry{
		PUUID:      rec.PUUID,
		Queue:      geo.Queue(rec.QueueType),
		Tier:       rec.Tier,
		Division:   rec.Rank,
		Wins:       rec.Wins,
		Losses:     rec.Losses,
		Shard:      shard,
		SuperShard: geo.SuperShardOf(shard),
	}
}
