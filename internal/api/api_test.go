package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/telemetry"
)

type fakeWaker struct {
	wakes int
}

func (f *fakeWaker) Wake() { f.wakes++ }

func newTestServer(w *fakeWaker) *httptest.Server {
	reg := prometheus.NewRegistry()
	telemetry.New(reg).RowsInserted.WithLabelValues("players").Add(3)
	return httptest.NewServer(NewServer(w, reg, zap.NewNop()).Handler())
}

func TestTriggerQueuesCycle(t *testing.T) {
	waker := &fakeWaker{}
	srv := newTestServer(waker)
	defer srv.Close()

	res, err := http.Post(srv.URL+"/pipelines/player_collection", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.Equal(t, 1, waker.wakes)

	var body triggerResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "queued", body.Status)
	_, err = uuid.Parse(body.TaskID)
	require.NoError(t, err)
}

func TestTriggerRejectsGet(t *testing.T) {
	waker := &fakeWaker{}
	srv := newTestServer(waker)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/pipelines/player_collection")
	require.NoError(t, err)
	res.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	require.Zero(t, waker.wakes)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeWaker{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestMetricsExposesRegistry(t *testing.T) {
	srv := newTestServer(&fakeWaker{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	buf := make([]byte, 64*1024)
	n, _ := res.Body.Read(buf)
	require.Contains(t, string(buf[:n]), "store_rows_inserted_total")
}
