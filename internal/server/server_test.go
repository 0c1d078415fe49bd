package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuelab/internal/metrics"
	"queuelab/internal/runner"
)

type fixedStatus struct{ p runner.Progress }

func (f fixedStatus) Live() runner.Progress { return f.p }

func newTestServer() (*Server, *metrics.Metrics) {
	m := metrics.New()
	m.Admitted(0)
	st := fixedStatus{p: runner.Progress{
		State:    runner.StateRunning,
		Elapsed:  time.Second,
		Duration: 30 * time.Second,
		Stages:   []runner.StageProgress{{Index: 0, Admitted: 1, Depth: 1, Capacity: 5}},
	}}
	return New(m.Handler(), st, nil), m
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "running", body["state"])
	stages := body["stages"].([]any)
	require.Len(t, stages, 1)
	assert.EqualValues(t, 5, stages[0].(map[string]any)["capacity"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `queuelab_stage_admitted_total{stage="0"} 1`)
}

func TestStartServesAndShutsDown(t *testing.T) {
	s, _ := newTestServer()
	require.NoError(t, s.Start("127.0.0.1:0"))
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ok")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err = http.Get("http://" + s.Addr() + "/healthz")
	assert.Error(t, err)
}

func TestStartFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s, _ := newTestServer()
	assert.Error(t, s.Start(ln.Addr().String()))
	assert.NoError(t, s.Shutdown(context.Background()))
}
