package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestWS creates a test HTTP server that upgrades to WebSocket and
// returns both ends of the connection. Everything is closed on cleanup.
func dialTestWS(t *testing.T) (serverConn, clientConn *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "dial")
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn = <-connCh:
		t.Cleanup(func() { serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

func TestClient_IDsAreUnique(t *testing.T) {
	a := newClient(nil, clientOptions{})
	b := newClient(nil, clientOptions{})
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestClient_SendQueueFull(t *testing.T) {
	c := newClient(nil, clientOptions{sendBuffer: 2})

	require.NoError(t, c.Send([]byte("1")))
	require.NoError(t, c.Send([]byte("2")))
	assert.ErrorIs(t, c.Send([]byte("3")), ErrSendQueueFull)
}

func TestClient_SendAfterClose(t *testing.T) {
	c := newClient(nil, clientOptions{})
	c.close()
	c.close()
	assert.ErrorIs(t, c.Send([]byte("x")), ErrClientClosed)
}

func TestClient_RateLimit(t *testing.T) {
	c := newClient(nil, clientOptions{messageRate: 0.001, messageBurst: 2})
	assert.True(t, c.allow())
	assert.True(t, c.allow())
	assert.False(t, c.allow())

	unlimited := newClient(nil, clientOptions{})
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.allow())
	}
}

func TestWritePump_DeliversQueuedMessages(t *testing.T) {
	serverConn, clientConn := dialTestWS(t)
	c := newClient(serverConn, clientOptions{})
	go c.writePump(nil)
	defer c.close()

	require.NoError(t, c.Send([]byte(`{"type":"pong"}`)))
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

// A write error ends the pump and runs the exit hook so the dead client
// can be removed from the session.
func TestWritePump_ExitsOnWriteError(t *testing.T) {
	serverConn, _ := dialTestWS(t)
	c := newClient(serverConn, clientOptions{})

	// Close the connection so any write attempt will immediately fail.
	serverConn.Close()
	require.NoError(t, c.Send([]byte(`{"type":"test"}`)))

	var exited atomic.Bool
	done := make(chan struct{})
	go func() {
		c.writePump(func() { exited.Store(true) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump did not exit after write error")
	}
	assert.True(t, exited.Load())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrClientClosed)
}

func TestWritePump_PingsOnInterval(t *testing.T) {
	serverConn, clientConn := dialTestWS(t)
	clock := clockwork.NewFakeClock()
	c := newClient(serverConn, clientOptions{pingInterval: 30 * time.Second, clock: clock})
	go c.writePump(nil)
	defer c.close()

	pinged := make(chan struct{}, 1)
	clientConn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := clientConn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(30 * time.Second)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping frame received")
	}
}

func TestWritePump_CloseSendsCloseFrame(t *testing.T) {
	serverConn, clientConn := dialTestWS(t)
	c := newClient(serverConn, clientOptions{})
	go c.writePump(nil)

	c.close()
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := clientConn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}
