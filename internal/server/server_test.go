package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/retention"
)

type fakeSweeps struct {
	last *retention.SweepResult
	busy bool
}

func (f *fakeSweeps) Last() (retention.SweepResult, bool) {
	if f.last == nil {
		return retention.SweepResult{}, false
	}
	return *f.last, true
}

func (f *fakeSweeps) RunNow(context.Context) (retention.SweepResult, bool) {
	if f.busy {
		return retention.SweepResult{}, false
	}
	res := retention.SweepResult{RunID: "now", CleanedCount: 1}
	f.last = &res
	return res, true
}

type fakeDepartures struct {
	recs []model.RetentionRecord
	err  error
}

func (f fakeDepartures) ListDeparted(context.Context, string) ([]model.RetentionRecord, error) {
	return f.recs, f.err
}

func newTestServer(sweeps *fakeSweeps, deps fakeDepartures) *Server {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(sweeps, deps, l)
}

func httpDo(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeSweeps{}, fakeDepartures{})
	w := httpDo(s.Handler(), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeSweeps{}, fakeDepartures{})
	w := httpDo(s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestLastSweep(t *testing.T) {
	sweeps := &fakeSweeps{}
	s := newTestServer(sweeps, fakeDepartures{})

	w := httpDo(s.Handler(), http.MethodGet, "/retention/last-sweep")
	assert.Equal(t, http.StatusNotFound, w.Code)

	finished := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sweeps.last = &retention.SweepResult{RunID: "r1", CleanedCount: 4, SkippedCount: 1, FinishedAt: finished}
	w = httpDo(s.Handler(), http.MethodGet, "/retention/last-sweep")
	require.Equal(t, http.StatusOK, w.Code)

	var got retention.SweepResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 4, got.CleanedCount)
	assert.True(t, finished.Equal(got.FinishedAt))
}

func TestSweepNow(t *testing.T) {
	sweeps := &fakeSweeps{}
	s := newTestServer(sweeps, fakeDepartures{})

	w := httpDo(s.Handler(), http.MethodPost, "/retention/sweep")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"now"`)

	sweeps.busy = true
	w = httpDo(s.Handler(), http.MethodPost, "/retention/sweep")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListDeparted(t *testing.T) {
	s := newTestServer(&fakeSweeps{}, fakeDepartures{})
	w := httpDo(s.Handler(), http.MethodGet, "/guilds/g1/departed")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	s = newTestServer(&fakeSweeps{}, fakeDepartures{recs: []model.RetentionRecord{{GuildID: "g1", UserID: "u1", State: model.StateDeparted}}})
	w = httpDo(s.Handler(), http.MethodGet, "/guilds/g1/departed")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)

	s = newTestServer(&fakeSweeps{}, fakeDepartures{err: errors.New("database is locked")})
	w = httpDo(s.Handler(), http.MethodGet, "/guilds/g1/departed")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(&fakeSweeps{}, fakeDepartures{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
