package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/storage/redisstore"
	"wifidog-auth/internal/users"
	"wifidog-auth/internal/wifidog/bandwidth"
	"wifidog-auth/internal/wifidog/gateway"
	"wifidog-auth/internal/wifidog/protocol"
	"wifidog-auth/internal/wifidog/session"
	"wifidog-auth/internal/wifidog/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	handler  http.Handler
	store    *redisstore.Store
	sessions *session.Store
	clock    *clock.Mock
	redis    *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewTestLogger(t)
	store := redisstore.New(database.NewRedisFromClient(client, "test:"))
	clk := clock.NewMock()
	clk.Set(testNow)

	sessions := session.NewStore(session.DefaultConfig(), store.Sessions(), token.NewIssuer(nil), clk, log)
	dispatcher := protocol.NewDispatcher(
		protocol.DefaultConfig(),
		sessions,
		bandwidth.NewAccumulator(nil, store.Bandwidth(), log),
		gateway.NewRegistry(nil, store.Gateways(), log),
		store.AuthLogs(),
		clk,
		log,
	)
	directory := users.NewDirectory(store.Users(), clk, log)
	_, err := directory.Register(context.Background(), "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)

	srv := New(DefaultConfig(), dispatcher, directory, sessions, store, nil, clk, log)
	return &testEnv{handler: srv.Router(), store: store, sessions: sessions, clock: clk, redis: mr}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (e *testEnv) login(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/portal/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func loginForm() url.Values {
	return url.Values{
		"username":   {"alice"},
		"password":   {"correct horse"},
		"gw_id":      {"GW1"},
		"gw_address": {"192.168.1.1"},
		"gw_port":    {"2060"},
		"mac":        {"AA:BB:CC:DD:EE:FF"},
		"ip":         {"192.168.1.20"},
	}
}

type stubSessions struct {
	count int64
	err   error
}

func (s *stubSessions) CreateSession(context.Context, string, string, string, string) (string, error) {
	return "", errors.New("unused")
}

func (s *stubSessions) ActiveSessionCount(context.Context) (int64, error) { return s.count, s.err }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// ==========================
// Gateway Protocol
// ==========================

func TestServer_PingVariants(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/wifidog?type=ping&gw_id=GW1&sys_uptime=100",
		"/wifidog/ping/?gw_id=GW1&sys_uptime=200",
		"/ping/?gw_id=GW1&sys_uptime=300",
		"/ping?gw_id=GW1&sys_uptime=400",
	} {
		rec := env.get(t, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "Pong", rec.Body.String(), target)
	}

	gw, err := env.store.Gateways().Find(context.Background(), "GW1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), gw.SysUptime)
}

func TestServer_PortalLoginThenAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, loginForm())
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1:2060", loc.Host)
	assert.Equal(t, "/wifidog/auth", loc.Path)
	tok := loc.Query().Get("token")
	require.Len(t, tok, 64)

	rec = env.get(t, "/auth/?stage=login&token="+tok+"&mac=aa:bb:cc:dd:ee:ff&ip=192.168.1.20&gw_id=GW1")
	assert.Equal(t, "Auth: 1", rec.Body.String())

	rec = env.get(t, "/wifidog?type=auth&stage=counters&token="+tok+"&mac=aa:bb:cc:dd:ee:ff&incoming=1000&outgoing=500&gw_id=GW1")
	assert.Equal(t, "Auth: 1", rec.Body.String())

	sess, err := env.store.Sessions().FindByToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sess.IncomingBytes)
	assert.Equal(t, int64(500), sess.OutgoingBytes)

	rec = env.get(t, "/auth/?stage=login&token="+tok+"&mac=11:22:33:44:55:66")
	assert.Equal(t, "Auth: 0", rec.Body.String(), "foreign device must be denied")

	rec = env.get(t, "/auth/?stage=logout&token="+tok+"&mac=aa:bb:cc:dd:ee:ff")
	assert.Equal(t, "Auth: 0", rec.Body.String())

	rec = env.get(t, "/auth/?stage=login&token="+tok+"&mac=aa:bb:cc:dd:ee:ff")
	assert.Equal(t, "Auth: 0", rec.Body.String(), "terminated token must stay denied")
}

func TestServer_AuthDeniesWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/wifidog?type=auth&stage=login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Auth: 0", rec.Body.String())
}

func TestServer_LoginAndPortalRedirects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/login/?gw_id=GW1&gw_address=192.168.1.1&gw_port=2060&mac=aa:bb:cc:dd:ee:ff&ip=192.168.1.20&url=ftp://x")
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "GW1", loc.Query().Get("gw_id"))
	assert.Equal(t, "http://google.com", loc.Query().Get("url"))

	rec = env.get(t, "/portal/?gw_id=GW1")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://google.com", rec.Header().Get("Location"))

	rec = env.get(t, "/wifidog")
	assert.Equal(t, http.StatusFound, rec.Code)
}

// ==========================
// Portal Login Form
// ==========================

func TestServer_PortalLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	form := loginForm()
	form.Set("password", "wrong")
	rec := env.login(t, form)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "AUTHENTICATION_FAILED", loc.Query().Get("error"))
	assert.Equal(t, "GW1", loc.Query().Get("gw_id"))

	form = loginForm()
	form.Set("mac", "bogus")
	assert.Equal(t, http.StatusBadRequest, env.login(t, form).Code)

	form = loginForm()
	form.Del("gw_address")
	assert.Equal(t, http.StatusBadRequest, env.login(t, form).Code)

	n, err := env.sessions.ActiveSessionCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ==========================
// Probes
// ==========================

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, loginForm())

	rec := env.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["activeSessions"])
	assert.Equal(t, "2024-05-01T10:00:00Z", body["time"])
}

func TestServer_HealthStates(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		countErr   error
		wantCode   int
		wantStatus string
	}{
		{"storage down", errors.New("connection refused"), nil, http.StatusServiceUnavailable, "unhealthy"},
		{"count failed", nil, errors.New("timeout"), http.StatusOK, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(nil, nil, nil, &stubSessions{err: tt.countErr}, stubPinger{err: tt.pingErr}, nil, nil, logger.NewTestLogger(t))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestServer_ReadyAndMetrics(t *testing.T) {
	srv := New(nil, nil, nil, &stubSessions{}, stubPinger{}, nil, nil, logger.NewNoOpLogger())
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wifidog_")
}

func TestServer_AuthIsAudited(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/auth/?token=unknown")

	entries, err := env.redis.Stream("test:auth_logs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values, "INVALID_OR_INACTIVE_SESSION")
}
