package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/pitchcast/pitchcast/internal/session"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 15 * time.Second
	writeTimeout       = 5 * time.Second
	readTimeout        = 60 * time.Second
	pingInterval       = 15 * time.Second
)

// WSClient manages the WebSocket connection to the pitchcast server.
type WSClient struct {
	url    string
	logger *slog.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises all conn writes
	conn     *websocket.Conn
	pingStop context.CancelFunc // cancels the active ping goroutine
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url string, logger *slog.Logger) *WSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{url: url, logger: logger}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSReadingMsg delivers one pitch_data frame.
type WSReadingMsg struct{ Reading session.Reading }

// WSPongMsg is sent when the server answers a ping.
type WSPongMsg struct{ At time.Time }

// Listen returns a Bubble Tea command that dials until it connects or ctx
// ends. Failed dials back off exponentially.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			if ctx.Err() != nil {
				return nil
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err != nil {
				c.logger.Debug("ws dial failed", "error", err, "retry_in", delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}

			c.mu.Lock()
			if c.pingStop != nil {
				c.pingStop()
			}
			pingCtx, pingCancel := context.WithCancel(ctx)
			c.conn = conn
			c.pingStop = pingCancel
			c.mu.Unlock()

			go c.pingLoop(pingCtx, conn)

			return WSConnectedMsg{}
		}
	}
}

// ReadLoop returns a Bubble Tea command that reads until the next frame the
// UI cares about. It should be reissued after every message it produces.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		for {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.drop(conn)
				return WSDisconnectedMsg{Err: err}
			}
			if msg := decode(data); msg != nil {
				return msg
			}
		}
	}
}

// Ping sends a JSON ping frame. The server answers with a pong frame.
func (c *WSClient) Ping() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.writeJSON(conn, session.ControlMessage{Type: session.MsgPing})
}

// Close stops pinging and closes the current connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingStop != nil {
		c.pingStop()
		c.pingStop = nil
	}
	c.mu.Unlock()
	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		conn.Close()
	}
}

func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

// pingLoop sends periodic JSON pings on conn. It exits when the context is
// cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			if err := c.writeJSON(conn, session.ControlMessage{Type: session.MsgPing}); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// decode maps a server frame to a Bubble Tea message. Unknown and malformed
// frames yield nil.
func decode(data []byte) tea.Msg {
	var head session.ControlMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil
	}
	switch head.Type {
	case session.MsgPitchData:
		var msg session.PitchMessage
		if json.Unmarshal(data, &msg) == nil {
			return WSReadingMsg{Reading: msg.Reading}
		}
	case session.MsgPong:
		return WSPongMsg{At: time.Now()}
	}
	return nil
}
