package league

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/fetch"
	"github.com/riftdata/pipeline/internal/geo"
)

type fakeAPI struct {
	mu      sync.Mutex
	calls   int
	handler func(url, location string) fetch.Result
}

func (f *fakeAPI) Fetch(ctx context.Context, url, location string) (fetch.Result, error) {
	if err := ctx.Err(); err != nil {
		return fetch.Result{}, err
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.handler(url, location), nil
}

func notFound() fetch.Result {
	return fetch.Result{Outcome: fetch.HTTPNonRetryable, Status: 404}
}

func okJSON(s string) fetch.Result {
	return fetch.Result{Outcome: fetch.OK, Status: 200, Data: []byte(s)}
}

func pageOf(url string) int {
	_, after, ok := strings.Cut(url, "page=")
	if !ok {
		return 0
	}
	var n int
	fmt.Sscanf(after, "%d", &n)
	return n
}

func TestEliteBoundsTiers(t *testing.T) {
	gm := geo.Grandmaster
	b := EliteBounds{Collect: true, Upper: &gm}
	require.Equal(t, []geo.EliteTier{geo.Grandmaster, geo.Master}, b.Tiers())

	b = EliteBounds{Collect: true, Lower: &gm}
	require.Equal(t, []geo.EliteTier{geo.Challenger, geo.Grandmaster}, b.Tiers())

	b = EliteBounds{Collect: true}
	require.Equal(t, geo.EliteTiers, b.Tiers())
}

func TestBracketBoundsRange(t *testing.T) {
	upper := geo.Bracket{Tier: geo.Gold, Division: geo.DivIII}
	lower := geo.Bracket{Tier: geo.Gold, Division: geo.DivIV}
	b := BracketBounds{Collect: true, Upper: &upper, Lower: &lower}
	require.Equal(t, []geo.Bracket{upper, lower}, b.Brackets())

	require.Len(t, BracketBounds{Collect: true}.Brackets(), 28)
}

func TestStreamElite(t *testing.T) {
	api := &fakeAPI{handler: func(url, location string) fetch.Result {
		if location != "euw1" || !strings.Contains(url, "challengerleagues") {
			return notFound()
		}
		return okJSON(`{
			"leagueId":"L1","tier":"CHALLENGER","name":"x","queue":"RANKED_SOLO_5x5",
			"entries":[
				{"puuid":"p1","rank":"I","wins":10,"losses":5},
				{"puuid":"p2","rank":"I","wins":3,"losses":4}
			]}`)
	}}
	c := NewCrawler(api, fetch.NewEndpoints(), zap.NewNop())

	ch := geo.Challenger
	bounds := EliteBoundsConfig{
		geo.QueueSolo: {Collect: true, Upper: &ch, Lower: &ch},
	}

	out := make(chan Entry, 64)
	require.NoError(t, c.StreamElite(context.Background(), bounds, out))
	close(out)

	var got []Entry
	for e := range out {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].PUUID)
	require.Equal(t, "CHALLENGER", got[0].Tier)
	require.Equal(t, "I", got[0].Division)
	require.Equal(t, geo.QueueSolo, got[0].Queue)
	require.Equal(t, geo.EUW1, got[0].Shard)
	require.Equal(t, geo.Europe, got[0].SuperShard)
}

func TestStreamEliteSkipsBadList(t *testing.T) {
	api := &fakeAPI{handler: func(url, location string) fetch.Result {
		// Missing tier fails validation everywhere.
		return okJSON(`{"leagueId":"L1","queue":"RANKED_SOLO_5x5","entries":[]}`)
	}}
	c := NewCrawler(api, fetch.NewEndpoints(), zap.NewNop())

	out := make(chan Entry, 8)
	require.NoError(t, c.StreamElite(context.Background(), DefaultEliteBounds(), out))
	close(out)
	require.Empty(t, out)
}

func TestDiscoverPageBounds(t *testing.T) {
	// Pages 1..7 are populated on euw1, everything past is empty; the
	// other shards have nothing at all.
	var euwProbes int
	var mu sync.Mutex
	api := &fakeAPI{handler: func(url, location string) fetch.Result {
		if location != "euw1" {
			return notFound()
		}
		mu.Lock()
		euwProbes++
		mu.Unlock()
		if pageOf(url) <= 7 {
			return okJSON(`[{"leagueId":"L","puuid":"p","queueType":"RANKED_SOLO_5x5","tier":"GOLD","rank":"IV","wins":1,"losses":1}]`)
		}
		return okJSON(`[]`)
	}}
	c := NewCrawler(api, fetch.NewEndpoints(), zap.NewNop())

	br := geo.Bracket{Tier: geo.Gold, Division: geo.DivIV}
	bounds := BracketBoundsConfig{
		geo.QueueSolo: {Collect: true, Upper: &br, Lower: &br},
	}

	got, err := c.DiscoverPageBounds(context.Background(), bounds)
	require.NoError(t, err)
	require.Len(t, got, len(geo.Shards))

	for _, pb := range got {
		if pb.Key.Shard == geo.EUW1 {
			require.Equal(t, 7, pb.LastPage)
		} else {
			require.Equal(t, 1, pb.LastPage)
		}
	}
	require.LessOrEqual(t, euwProbes, 10)
}

func TestProbeFailsOnUnexpectedOutcome(t *testing.T) {
	api := &fakeAPI{handler: func(url, location string) fetch.Result {
		return fetch.Result{Outcome: fetch.RetryExhausted}
	}}
	c := NewCrawler(api, fetch.NewEndpoints(), zap.NewNop())

	_, err := c.probe(context.Background(), PageKey{
		Shard: geo.KR, Queue: geo.QueueSolo, Tier: geo.Iron, Division: geo.DivIV,
	})
	require.Error(t, err)
}

func TestStreamSubElite(t *testing.T) {
	// One populated page on kr; records with a missing puuid are
	// skipped without aborting the page.
	api := &fakeAPI{handler: func(url, location string) fetch.Result {
		if location != "kr" {
			return notFound()
		}
		if pageOf(url) == 1 {
			return okJSON(`[
				{"leagueId":"L","puuid":"p1","queueType":"RANKED_FLEX_SR","tier":"IRON","rank":"II","wins":9,"losses":9},
				{"leagueId":"L","queueType":"RANKED_FLEX_SR","tier":"IRON","rank":"II"},
				{"leagueId":"L","puuid":"p2","queueType":"RANKED_FLEX_SR","tier":"IRON","rank":"II","wins":1,"losses":2}
			]`)
		}
		return okJSON(`[]`)
	}}
	c := NewCrawler(api, fetch.NewEndpoints(), zap.NewNop())

	br := geo.Bracket{Tier: geo.Iron, Division: geo.DivII}
	bounds := BracketBoundsConfig{
		geo.QueueFlex: {Collect: true, Upper: &br, Lower: &br},
	}

	out := make(chan Entry, 64)
	require.NoError(t, c.StreamSubElite(context.Background(), bounds, out))
	close(out)

	var got []Entry
	for e := range out {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].PUUID)
	require.Equal(t, geo.QueueFlex, got[0].Queue)
	require.Equal(t, "IRON", got[0].Tier)
	require.Equal(t, geo.KR, got[0].Shard)
	require.Equal(t, geo.Asia, got[0].SuperShard)
	require.Equal(t, "p2", got[1].PUUID)
}
