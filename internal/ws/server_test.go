package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pitchcast/pitchcast/internal/metrics"
	"github.com/pitchcast/pitchcast/internal/pitch"
	"github.com/pitchcast/pitchcast/internal/procstat"
	"github.com/pitchcast/pitchcast/internal/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	securityHeaders(inner).ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": "default-src 'self'",
	}

	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

type fixedSource float64

func (f fixedSource) CurrentFrequency() float64 { return float64(f) }

type stubStats struct{}

func (stubStats) Sample(context.Context) (procstat.Stats, error) {
	return procstat.Stats{CPUPercent: 1.5, RSSBytes: 1 << 20, Goroutines: 7}, nil
}

type testEnv struct {
	sess  *session.Session
	srv   *Server
	http  *httptest.Server
	clock *clockwork.FakeClock
}

func newTestEnv(t *testing.T, src pitch.Source, scfg session.Config, opts Options) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClock()
	scfg.Clock = clock
	sess := session.New(src, scfg)
	srv := NewServer(sess, opts)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		sess.Stop()
	})
	return &testEnv{sess: sess, srv: srv, http: hs, clock: clock}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) get(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestServer_BroadcastsTicks(t *testing.T) {
	env := newTestEnv(t, fixedSource(440), session.Config{}, Options{})
	conn := env.dial(t)

	require.Eventually(t, func() bool { return env.sess.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, session.Broadcasting, env.sess.State())

	env.clock.Advance(session.DefaultInterval)
	m := readJSON(t, conn)
	assert.Equal(t, "pitch_data", m["type"])
	assert.Equal(t, "A", m["note"])
	assert.Equal(t, 4.0, m["octave"])
}

func TestServer_PingPong(t *testing.T) {
	env := newTestEnv(t, pitch.NewClientSource(), session.Config{Mode: session.ModePush}, Options{})
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, map[string]any{"type": "pong"}, readJSON(t, conn))
}

func TestServer_AudioDataRoundTrip(t *testing.T) {
	push := pitch.NewClientSource()
	env := newTestEnv(t, push, session.Config{Mode: session.ModePush, Push: push}, Options{})
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"audio_data","frequency":196,"amplitude":0.25}`)))

	m := readJSON(t, conn)
	assert.Equal(t, "pitch_data", m["type"])
	assert.Equal(t, "G", m["note"])
	assert.Equal(t, 3.0, m["octave"])
	assert.Equal(t, false, m["demo"])
	assert.Equal(t, 0.25, m["amplitude"])
}

func TestServer_DisconnectReturnsSessionToIdle(t *testing.T) {
	env := newTestEnv(t, fixedSource(440), session.Config{}, Options{})
	conn := env.dial(t)
	require.Eventually(t, func() bool { return env.sess.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.sess.State() == session.Idle }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, env.sess.Ticking())
}

func TestServer_MaxConnections(t *testing.T) {
	rejected := metrics.ConnectionsRejected.WithLabelValues("max_connections")
	before := testutil.ToFloat64(rejected)

	env := newTestEnv(t, fixedSource(440), session.Config{MaxClients: 1}, Options{})
	env.dial(t)
	require.Eventually(t, func() bool { return env.sess.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	second := env.dial(t)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
	assert.Equal(t, 1, env.sess.ClientCount())
	assert.Equal(t, before+1, testutil.ToFloat64(rejected))
}

func TestServer_InboundRateLimit(t *testing.T) {
	env := newTestEnv(t, pitch.NewClientSource(), session.Config{Mode: session.ModePush},
		Options{MessageRate: 0.001, MessageBurst: 1})
	limited := metrics.InboundMessages.WithLabelValues("limited")
	before := testutil.ToFloat64(limited)
	conn := env.dial(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	}
	assert.Equal(t, "pong", readJSON(t, conn)["type"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected only one pong, got %v", err)
	assert.Equal(t, before+2, testutil.ToFloat64(limited))
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, fixedSource(440), session.Config{}, Options{})
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, env.sess.ClientCount())
}

func TestServer_Notes(t *testing.T) {
	env := newTestEnv(t, fixedSource(0), session.Config{}, Options{})

	var body NotesResponse
	resp := env.get(t, "/notes", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Len(t, body.Notes, 60)
	assert.Equal(t, "C2", body.Notes[0].Display)
	assert.Equal(t, 65.41, body.Notes[0].Frequency)
	assert.Equal(t, "B6", body.Notes[59].Display)
	assert.Equal(t, 1975.53, body.Notes[59].Frequency)
}

func TestServer_Status(t *testing.T) {
	capture := pitch.NewCapture(nil, nil)
	env := newTestEnv(t, pitch.NewSimulator(1), session.Config{Mode: session.ModeHybrid},
		Options{Health: capture.Health(), Stats: stubStats{}})

	var body StatusResponse
	env.get(t, "/status", &body)
	assert.Equal(t, "running", body.Status)
	assert.Equal(t, session.ModeHybrid, body.Mode)
	assert.True(t, body.Demo)
	assert.Equal(t, session.Idle, body.State)
	assert.Zero(t, body.Connections)
	assert.False(t, body.Ticking)
	require.NotNil(t, body.Source)
	assert.Equal(t, pitch.StatusHealthy, body.Source.Status)
	require.NotNil(t, body.Process)
	assert.Equal(t, 7, body.Process.Goroutines)
	assert.True(t, body.Features.WebSocket)
	assert.True(t, body.Features.SimulatedData)
	assert.True(t, body.Features.AudioInput)

	env.dial(t)
	require.Eventually(t, func() bool { return env.sess.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	var live StatusResponse
	env.get(t, "/status", &live)
	assert.Equal(t, session.Broadcasting, live.State)
	assert.Equal(t, 1, live.Connections)
	assert.True(t, live.Ticking)
}

// blockingStats holds every Sample until release is closed.
type blockingStats struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStats) Sample(context.Context) (procstat.Stats, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	<-b.release
	return procstat.Stats{Goroutines: 3}, nil
}

func TestServer_StatusCoalescesProcessSamples(t *testing.T) {
	stats := &blockingStats{entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv(t, pitch.NewSimulator(1), session.Config{Mode: session.ModePull},
		Options{Stats: stats})

	const n = 4
	var wg sync.WaitGroup
	bodies := make([]StatusResponse, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Get(env.http.URL + "/status")
			if err != nil {
				return
			}
			defer resp.Body.Close()
			json.NewDecoder(resp.Body).Decode(&bodies[i])
		}(i)
	}

	<-stats.entered
	// Let the other requests reach the in-flight sample before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(stats.release)
	wg.Wait()

	assert.Less(t, stats.calls.Load(), int32(n), "concurrent requests should share a sample")
	for _, b := range bodies {
		require.NotNil(t, b.Process)
		assert.Equal(t, 3, b.Process.Goroutines)
	}
}

func TestServer_InfoAndRoot(t *testing.T) {
	env := newTestEnv(t, fixedSource(0), session.Config{Mode: session.ModePush},
		Options{Version: "1.2.3"})

	var info InfoResponse
	env.get(t, "/api", &info)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, session.ModePush, info.Mode)
	assert.Equal(t, "/ws", info.Endpoints["websocket"])

	var root InfoResponse
	env.get(t, "/", &root)
	assert.Equal(t, "1.2.3", root.Version)

	resp := env.get(t, "/tuner", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_FrontendHandlerServesRoot(t *testing.T) {
	fe := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>tuner</html>"))
	})
	env := newTestEnv(t, fixedSource(0), session.Config{}, Options{Frontend: fe})

	resp, err := http.Get(env.http.URL + "/some/route")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestCORSPreflightAndMethods(t *testing.T) {
	h := cors(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/notes", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		host    string
		origin  string
		want    bool
	}{
		{"no origin", nil, "example.com", "", true},
		{"same host", nil, "example.com", "https://example.com", true},
		{"localhost", nil, "example.com", "http://localhost:5173", true},
		{"loopback v4", nil, "example.com", "http://127.0.0.1:8000", true},
		{"loopback v6", nil, "example.com", "http://[::1]:8000", true},
		{"foreign", nil, "example.com", "https://evil.example", false},
		{"allow-list hit", []string{"https://tuner.app"}, "example.com", "https://tuner.app", true},
		{"allow-list miss", []string{"https://tuner.app"}, "example.com", "http://localhost:5173", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(nil, Options{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(req))
		})
	}
}
