package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/json"
	"github.com/dkeye/Relay/internal/metrics"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func setup(t *testing.T) (http.Handler, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		ICEServers: []config.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}},
	}
	reg := prometheus.NewRegistry()
	o := &orch.Orchestrator{State: app.NewState(), Metrics: metrics.New(reg)}
	return SetupRouter(context.Background(), cfg, o, reg), o
}

func get(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code, "GET %s", path)
	if out != nil {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	}
	return rr
}

func TestStatus(t *testing.T) {
	h, o := setup(t)

	var st map[string]any
	rr := get(t, h, "/", &st)
	assert.Equal(t, "ok", st["status"])
	assert.EqualValues(t, 0, st["users"])
	assert.Contains(t, rr.Header().Get("Set-Cookie"), sessionName)

	o.OnConnect("s1", nopConn{})
	o.OnFrame("s1", []byte(`{"type":"register","displayName":"Alice","addressId":"alice","roomToken":"r1"}`))

	get(t, h, "/api/status", &st)
	assert.EqualValues(t, 1, st["users"])
	assert.EqualValues(t, 1, st["registered"])
	assert.EqualValues(t, 1, st["rooms"])
	assert.EqualValues(t, 1, st["addresses"])
}

func TestUsersAndRooms(t *testing.T) {
	h, o := setup(t)

	var rooms []app.RoomInfo
	rr := get(t, h, "/api/rooms", &rooms)
	assert.Equal(t, "[]", rr.Body.String())

	o.OnConnect("s1", nopConn{})
	o.OnFrame("s1", []byte(`{"type":"register","displayName":"Alice","addressId":"alice","roomToken":"r1"}`))

	var users []app.Peer
	get(t, h, "/api/users", &users)
	require.Len(t, users, 1)
	assert.Equal(t, core.SessionID("s1"), users[0].SessionID)
	assert.Equal(t, "Alice", users[0].DisplayName)

	get(t, h, "/api/rooms", &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].MemberCount)
}

func TestICEServers(t *testing.T) {
	h, _ := setup(t)

	var body struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	get(t, h, "/api/ice-servers", &body)
	require.Len(t, body.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, body.ICEServers[0].URLs)
}

func TestMetricsEndpoint(t *testing.T) {
	h, o := setup(t)
	o.OnConnect("s1", nopConn{})

	rr := get(t, h, "/metrics", nil)
	assert.Contains(t, rr.Body.String(), "relay_sessions 1")
}
