package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

var (
	ErrClientClosed  = errors.New("client closed")
	ErrSendQueueFull = errors.New("send queue full")
)

const (
	DefaultSendBuffer   = 64
	DefaultWriteTimeout = 5 * time.Second
	DefaultPingInterval = 30 * time.Second
	maxMessageSize      = 4096
)

type clientOptions struct {
	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration
	messageRate  float64
	messageBurst int
	clock        clockwork.Clock
}

// client is one WebSocket connection registered with the session. Writes go
// through a buffered queue drained by writePump so a slow peer never blocks
// the broadcast tick.
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	closed  chan struct{}
	once    sync.Once
	opts    clientOptions
	limiter *rate.Limiter
}

func newClient(conn *websocket.Conn, opts clientOptions) *client {
	if opts.sendBuffer <= 0 {
		opts.sendBuffer = DefaultSendBuffer
	}
	if opts.writeTimeout <= 0 {
		opts.writeTimeout = DefaultWriteTimeout
	}
	if opts.clock == nil {
		opts.clock = clockwork.NewRealClock()
	}
	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, opts.sendBuffer),
		closed: make(chan struct{}),
		opts:   opts,
	}
	if opts.messageRate > 0 {
		burst := opts.messageBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.messageRate), burst)
	}
	return c
}

func (c *client) ID() string { return c.id }

// Send queues data for the write pump. It fails when the client has been
// closed or its queue is full.
func (c *client) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrClientClosed
	default:
		return ErrSendQueueFull
	}
}

// allow reports whether an inbound message fits the client's rate limit.
func (c *client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *client) close() {
	c.once.Do(func() { close(c.closed) })
}

// writePump drains the send queue and keeps the connection alive with ping
// frames. It owns all writes to conn and closes it on exit; onExit runs
// after the connection is closed.
func (c *client) writePump(onExit func()) {
	var pings <-chan time.Time
	if c.opts.pingInterval > 0 {
		ticker := c.opts.clock.NewTicker(c.opts.pingInterval)
		defer ticker.Stop()
		pings = ticker.Chan()
	}
	defer func() {
		c.close()
		_ = c.conn.Close()
		if onExit != nil {
			onExit()
		}
	}()

	for {
		select {
		case msg := <-c.send:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pings:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.setWriteDeadline()
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Network deadlines are wall-clock; the injected clock only paces pings.
func (c *client) setWriteDeadline() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
}

// pongWait is how long the read side waits for any frame, pongs included,
// before giving up on the peer. Zero disables the read deadline.
func (c *client) pongWait() time.Duration {
	if c.opts.pingInterval <= 0 {
		return 0
	}
	return 2 * c.opts.pingInterval
}

func (c *client) extendReadDeadline() {
	if wait := c.pongWait(); wait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	}
}
