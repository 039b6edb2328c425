package matchids

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
	urls    []string
	handler func(url string) fetch.Result
}

func (f *fakeAPI) Fetch(ctx context.Context, url, location string) (fetch.Result, error) {
	if err := ctx.Err(); err != nil {
		return fetch.Result{}, err
	}
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.handler(url), nil
}

func startOf(url string) int {
	_, after, _ := strings.Cut(url, "start=")
	var n int
	fmt.Sscanf(after, "%d", &n)
	return n
}

func idPage(prefix string, n int) fetch.Result {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s_%d", prefix, i)
	}
	data, _ := json.Marshal(ids)
	return fetch.Result{Outcome: fetch.OK, Status: 200, Data: data}
}

func testState(puuid string) PlayerState {
	return PlayerState{
		PUUID:         puuid,
		Queue:         geo.QueueSolo,
		SuperShard:    geo.Europe,
		NextPageStart: 0,
		BaseURL:       "https://europe.api.riotgames.com/lol/match/v5/matches/by-puuid/" + puuid + "/ids?startTime=0&endTime={endTime}&type=ranked&queue=420&start={start}&count=100",
	}
}

func collect(t *testing.T, c *Crawler, states []PlayerState, ts int64) [][]string {
	t.Helper()
	out := make(chan []string, 1024)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Stream(context.Background(), states, ts, out)
		close(out)
	}()

	var got [][]string
	for batch := range out {
		got = append(got, batch)
	}
	require.NoError(t, <-errCh)
	return got
}

func TestStreamPagination(t *testing.T) {
	api := &fakeAPI{handler: func(url string) fetch.Result {
		switch startOf(url) {
		case 0:
			return idPage("EUW1_a", 100)
		case 100:
			return idPage("EUW1_b", 100)
		case 200:
			return idPage("EUW1_c", 42)
		}
		t.Errorf("unexpected request %s", url)
		return fetch.Result{Outcome: fetch.HTTPNonRetryable, Status: 404}
	}}
	c := NewCrawler(api, zap.NewNop())

	got := collect(t, c, []PlayerState{testState("p1")}, 1700000000)

	var all []string
	for _, batch := range got {
		all = append(all, batch...)
	}
	require.Len(t, all, 242)
	require.Len(t, api.urls, 3)
	for _, u := range api.urls {
		require.Contains(t, u, "endTime=1700000000")
	}
}

func TestStreamStopsAtStartCap(t *testing.T) {
	// Every page is full; the crawl still ends once start reaches 900.
	api := &fakeAPI{handler: func(url string) fetch.Result {
		return idPage("KR", 100)
	}}
	c := NewCrawler(api, zap.NewNop())

	got := collect(t, c, []PlayerState{testState("p1")}, 1)
	require.Len(t, got, 10)
	require.Len(t, api.urls, 10)
}

func TestStreamEmptyStates(t *testing.T) {
	api := &fakeAPI{handler: func(url string) fetch.Result {
		t.Error("no request expected")
		return fetch.Result{}
	}}
	c := NewCrawler(api, zap.NewNop())
	require.Empty(t, collect(t, c, nil, 1))
}

func TestStreamNonOKEndsPlayer(t *testing.T) {
	api := &fakeAPI{handler: func(url string) fetch.Result {
		return fetch.Result{Outcome: fetch.RetryExhausted}
	}}
	c := NewCrawler(api, zap.NewNop())

	got := collect(t, c, []PlayerState{testState("p1"), testState("p2")}, 1)
	require.Len(t, got, 2)
	for _, batch := range got {
		require.Empty(t, batch)
	}
	require.Len(t, api.urls, 2)
}

func TestStreamManyPlayers(t *testing.T) {
	api := &fakeAPI{handler: func(url string) fetch.Result {
		if startOf(url) == 0 {
			return idPage(url[strings.Index(url, "by-puuid/"):][:12], 3)
		}
		return idPage("x", 0)
	}}
	c := NewCrawler(api, zap.NewNop())

	states := make([]PlayerState, 500)
	for i := range states {
		states[i] = testState(fmt.Sprintf("p%03d", i))
	}

	got := collect(t, c, states, 1)
	require.Len(t, got, 500)
	total := 0
	for _, batch := range got {
		total += len(batch)
	}
	require.Equal(t, 1500, total)
}
