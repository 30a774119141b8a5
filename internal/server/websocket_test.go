package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/core/systems/physics"
	"github.com/zeusync/finder/internal/sim"
	"github.com/zeusync/finder/pkg/protocol"
)

func testFactory(t *testing.T, simCfg sim.Config) EnvFactory {
	t.Helper()
	rm, err := room.New(room.DefaultBounds(), physics.Zero)
	require.NoError(t, err)
	return func(id string) (*sim.Environment, error) {
		return sim.New(simCfg, rm, agent.DefaultConfig(),
			sim.WithID(id), sim.WithRand(agent.NewRand(1, id)))
	}
}

func newTestServer(t *testing.T, cfg Config, simCfg sim.Config) (*Server, string) {
	t.Helper()
	srv := NewServer(cfg, testFactory(t, simCfg), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/env"
}

func dial(t *testing.T, u string, h http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(u, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req Request) Response {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestResetStepStatus(t *testing.T) {
	_, u := newTestServer(t, DefaultConfig(), sim.DefaultConfig())
	conn := dial(t, u, nil)

	resp := roundTrip(t, conn, Request{Op: OpStep, Action: []float64{1, 0}})
	assert.Contains(t, resp.Error, ErrResetRequired.Error())

	resp = roundTrip(t, conn, Request{Op: OpReset})
	require.Empty(t, resp.Error)
	require.NotNil(t, resp.Observation)
	require.NotNil(t, resp.Info)
	assert.NotEmpty(t, resp.Session)
	assert.Equal(t, uint64(1), resp.Info.Episode)
	assert.Equal(t, "none", resp.Info.Outcome)
	assert.GreaterOrEqual(t, resp.Observation.Distance, agent.MinGoalDistance)

	resp = roundTrip(t, conn, Request{Op: OpStep, Action: []float64{1, 0}})
	require.Empty(t, resp.Error)
	assert.Equal(t, uint64(1), resp.Info.Step)
	assert.NotEqual(t, protocol.Vec3{}, resp.Observation.Velocity)

	resp = roundTrip(t, conn, Request{Op: OpStatus})
	require.Empty(t, resp.Error)
	assert.Equal(t, uint64(1), resp.Info.Step)
	assert.False(t, resp.Done)
}

func TestBadRequests(t *testing.T) {
	_, u := newTestServer(t, DefaultConfig(), sim.DefaultConfig())
	conn := dial(t, u, nil)
	roundTrip(t, conn, Request{Op: OpReset})

	resp := roundTrip(t, conn, Request{Op: OpStep, Action: []float64{1}})
	assert.Contains(t, resp.Error, ErrInvalidMessage.Error())

	resp = roundTrip(t, conn, Request{Op: "jump"})
	assert.Contains(t, resp.Error, ErrUnknownOp.Error())

	// out of range branches are silent no-ops
	resp = roundTrip(t, conn, Request{Op: OpStep, Action: []float64{7, -3}})
	assert.Empty(t, resp.Error)
}

func TestEpisodeOver(t *testing.T) {
	simCfg := sim.DefaultConfig()
	simCfg.MaxEpisodeTime = 2 * simCfg.FixedDelta
	_, u := newTestServer(t, DefaultConfig(), simCfg)
	conn := dial(t, u, nil)
	roundTrip(t, conn, Request{Op: OpReset})

	stop := []float64{0, 0}
	var resp Response
	for i := 0; i < 2; i++ {
		resp = roundTrip(t, conn, Request{Op: OpStep, Action: stop})
		require.Empty(t, resp.Error)
		require.False(t, resp.Done)
	}
	assert.True(t, resp.Truncated)

	resp = roundTrip(t, conn, Request{Op: OpStep, Action: stop})
	assert.Equal(t, sim.ErrEpisodeOver.Error(), resp.Error)

	resp = roundTrip(t, conn, Request{Op: OpReset})
	assert.Empty(t, resp.Error)
	assert.Equal(t, uint64(2), resp.Info.Episode)
}

func TestTokenAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token = "s3cret"
	_, u := newTestServer(t, cfg, sim.DefaultConfig())

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, _, err = websocket.DefaultDialer.Dial(u+"?token=wrong", nil)
	assert.Error(t, err)

	dial(t, u+"?token=s3cret", nil)
	dial(t, u, http.Header{"Authorization": []string{"Bearer s3cret"}})
}

func TestMaxClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	srv, u := newTestServer(t, cfg, sim.DefaultConfig())

	conn := dial(t, u, nil)
	roundTrip(t, conn, Request{Op: OpReset})
	assert.Equal(t, int64(1), srv.GetStats().ClientCount)

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := NewServer(cfg, testFactory(t, sim.DefaultConfig()), nil)
	ctx := context.Background()

	require.NoError(t, srv.Start(ctx))
	assert.ErrorIs(t, srv.Start(ctx), ErrServerAlreadyRunning)

	base := srv.Addr().String()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/env", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(Request{Op: OpReset}))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))

	hr, err := http.Get("http://" + base + "/healthz")
	require.NoError(t, err)
	var stats Stats
	require.NoError(t, json.NewDecoder(hr.Body).Decode(&stats))
	_ = hr.Body.Close()
	assert.True(t, stats.Running)
	assert.Equal(t, int64(1), stats.ClientCount)

	require.NoError(t, srv.Stop(ctx))
	assert.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)
	assert.Error(t, conn.ReadJSON(&resp))

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(ctx), ErrServerClosed)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ListenAddr = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MaxClients = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
