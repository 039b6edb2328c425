package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/geo"
	"github.com/riftdata/pipeline/internal/ratelimit"
	"github.com/riftdata/pipeline/internal/telemetry"
)

func testClient(t *testing.T) (*Client, *telemetry.Metrics) {
	t.Helper()
	metrics := telemetry.New(prometheus.NewRegistry())
	limiters := ratelimit.NewRegistry(metrics.ExportLimiterRate)
	c := NewClient("RGAPI-secret", 1000, time.Second, limiters, metrics, zap.NewNop())
	c.retryInitial = time.Millisecond
	c.retryMax = 5 * time.Millisecond
	return c, metrics
}

func TestFetchRetriesThenOK(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "RGAPI-secret", r.Header.Get("X-Riot-Token"))
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, metrics := testClient(t)
	res, err := c.Fetch(context.Background(), srv.URL, "euw1")
	require.NoError(t, err)
	require.Equal(t, OK, res.Outcome)
	require.Equal(t, 200, res.Status)
	require.JSONEq(t, `{"ok":true}`, string(res.Data))
	require.EqualValues(t, 4, calls.Load())

	count := testutil.ToFloat64(metrics.HTTPErrorCodes.WithLabelValues("429", "retryable"))
	require.Equal(t, 3.0, count)
}

func TestFetchNonRetryable(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, metrics := testClient(t)
	res, err := c.Fetch(context.Background(), srv.URL, "euw1")
	require.NoError(t, err)
	require.Equal(t, HTTPNonRetryable, res.Outcome)
	require.Equal(t, 403, res.Status)
	require.Nil(t, res.Data)
	require.EqualValues(t, 1, calls.Load())

	count := testutil.ToFloat64(metrics.HTTPErrorCodes.WithLabelValues("403", "unexpected"))
	require.Equal(t, 1.0, count)
}

func TestFetchNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>\nmaintenance\n</html>"))
	}))
	defer srv.Close()

	c, _ := testClient(t)
	res, err := c.Fetch(context.Background(), srv.URL, "kr")
	require.NoError(t, err)
	require.Equal(t, NonJSON, res.Outcome)
	require.Nil(t, res.Data)
}

func TestFetchRetryExhausted(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := testClient(t)
	res, err := c.Fetch(context.Background(), srv.URL, "na1")
	require.NoError(t, err)
	require.Equal(t, RetryExhausted, res.Outcome)
	require.Nil(t, res.Data)
	require.EqualValues(t, 5, calls.Load())
}

func TestMaskAPIKey(t *testing.T) {
	masked := MaskAPIKey("https://h/x?page=2&api_key=RGAPI-abc-123&count=100")
	require.Equal(t, "https://h/x?page=2&api_key=*&count=100", masked)
	require.NotContains(t, masked, "RGAPI-abc-123")

	require.Equal(t, "https://h/x?api_key=*", MaskAPIKey("https://h/x?api_key=RGAPI-tail"))
	require.Equal(t, "https://h/x?page=2", MaskAPIKey("https://h/x?page=2"))
}

func TestBodyPreview(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	require.Len(t, BodyPreview(long), 200)
	require.Equal(t, "a b c", BodyPreview([]byte("a\nb\rc")))
}

func TestEndpoints(t *testing.T) {
	e := NewEndpoints()

	require.Equal(t,
		"https://euw1.api.riotgames.com/lol/league/v4/challengerleagues/by-queue/RANKED_SOLO_5x5",
		e.EliteList(geo.EUW1, geo.Challenger, geo.QueueSolo))

	require.Equal(t,
		"https://kr.api.riotgames.com/lol/league/v4/entries/RANKED_FLEX_SR/GOLD/IV?page=3",
		e.Entries(geo.KR, geo.QueueFlex, geo.Gold, geo.DivIV, 3))

	require.Equal(t,
		"https://americas.api.riotgames.com/lol/match/v5/matches/by-puuid/puuid-1/ids?startTime=0&endTime={endTime}&type=ranked&queue=420&start={start}&count=100",
		e.MatchIDsByPUUID(geo.Americas, "puuid-1", geo.QueueSolo, 0))

	require.Equal(t,
		"https://europe.api.riotgames.com/lol/match/v5/matches/EUW1_1/timeline",
		e.Timeline(geo.Europe, "EUW1_1"))

	fixed := NewFixedEndpoints("http://127.0.0.1:9/")
	require.Equal(t, "http://127.0.0.1:9/lol/match/v5/matches/NA1_2",
		fixed.Match(geo.Americas, "NA1_2"))
}
