// Package session coordinates a single broadcast: the set of connected
// clients, the Idle/Broadcasting state machine, and the tick loop that
// samples a pitch source and fans readings out.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pitchcast/pitchcast/internal/metrics"
	"github.com/pitchcast/pitchcast/internal/pitch"
)

// DefaultInterval is the broadcast cadence, 20 readings per second.
const DefaultInterval = 50 * time.Millisecond

var (
	ErrTooManyClients = errors.New("too many clients")
	ErrClosed         = errors.New("session closed")
)

// Client is a connected peer. Send must not block; an error means the
// client is gone or cannot keep up and will be removed.
type Client interface {
	ID() string
	Send(data []byte) error
}

type Config struct {
	Mode       Mode
	Interval   time.Duration
	MaxClients int // 0 = unlimited
	// Push receives in-band audio_data frequencies. Optional.
	Push   pitch.Pusher
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// tickLoop is one Broadcasting period's ticker goroutine.
type tickLoop struct {
	stop chan struct{}
	done chan struct{}
}

type Session struct {
	source pitch.Source
	push   pitch.Pusher
	mode   Mode
	every  time.Duration
	max    int
	clock  clockwork.Clock
	log    *slog.Logger
	demo   bool

	mu       sync.Mutex
	clients  map[string]Client
	state    State
	loop     *tickLoop
	ceded    bool
	closed   bool
	cancelSr context.CancelFunc
}

func New(source pitch.Source, cfg Config) *Session {
	if cfg.Mode == "" {
		cfg.Mode = ModePull
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		source:  source,
		push:    cfg.Push,
		mode:    cfg.Mode,
		every:   cfg.Interval,
		max:     cfg.MaxClients,
		clock:   cfg.Clock,
		log:     cfg.Logger.With("component", "session"),
		demo:    pitch.IsSimulated(source),
		clients: make(map[string]Client),
	}
}

// Connect registers c. The first client moves the session to Broadcasting.
func (s *Session) Connect(c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.clients[c.ID()]; ok {
		return nil
	}
	if s.max > 0 && len(s.clients) >= s.max {
		return ErrTooManyClients
	}

	s.clients[c.ID()] = c
	metrics.ConnectedClients.Set(float64(len(s.clients)))
	s.log.Info("client connected", "client", c.ID(), "clients", len(s.clients))

	if s.state == Idle {
		s.startLocked()
	}
	return nil
}

// Disconnect removes c. Removing the last client returns the session to
// Idle. Unknown clients are ignored.
func (s *Session) Disconnect(c Client) {
	s.remove(c.ID(), "")
}

func (s *Session) remove(id, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[id]; !ok {
		return
	}
	delete(s.clients, id)
	metrics.ConnectedClients.Set(float64(len(s.clients)))

	if reason != "" {
		metrics.ClientsDropped.WithLabelValues(reason).Inc()
		s.log.Warn("client dropped", "client", id, "reason", reason, "clients", len(s.clients))
	} else {
		s.log.Info("client disconnected", "client", id, "clients", len(s.clients))
	}

	if len(s.clients) == 0 && s.state == Broadcasting {
		s.stopLocked()
	}
}

// startLocked performs Idle -> Broadcasting. Caller must hold s.mu.
func (s *Session) startLocked() {
	s.state = Broadcasting
	s.ceded = false
	metrics.SessionState.Set(1)

	if lc, ok := s.source.(pitch.Lifecycle); ok {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelSr = cancel
		if err := lc.Start(ctx); err != nil {
			// Broadcast continues; a failed source reads as silence.
			s.log.Error("source start failed", "error", err)
		}
	}

	if s.mode.ticks() {
		s.startLoopLocked()
	}
	s.log.Info("session broadcasting", "mode", s.mode, "interval", s.every)
}

// stopLocked performs Broadcasting -> Idle. It never waits on the tick
// goroutine, so it is safe to call from inside a tick. Caller must hold s.mu.
func (s *Session) stopLocked() {
	s.state = Idle
	s.ceded = false
	metrics.SessionState.Set(0)
	s.stopLoopLocked()

	if lc, ok := s.source.(pitch.Lifecycle); ok {
		if err := lc.Stop(); err != nil {
			s.log.Error("source stop failed", "error", err)
		}
	}
	if s.cancelSr != nil {
		s.cancelSr()
		s.cancelSr = nil
	}
	s.log.Info("session idle")
}

func (s *Session) startLoopLocked() {
	if s.loop != nil {
		return
	}
	l := &tickLoop{stop: make(chan struct{}), done: make(chan struct{})}
	s.loop = l
	ticker := s.clock.NewTicker(s.every)
	go s.run(l, ticker)
}

func (s *Session) stopLoopLocked() {
	if s.loop == nil {
		return
	}
	close(s.loop.stop)
	s.loop = nil
}

func (s *Session) run(l *tickLoop, ticker clockwork.Ticker) {
	defer close(l.done)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.Chan():
			s.tick(l)
		}
	}
}

// tick samples the source once and delivers the reading to every client.
// A loop that has been superseded or stopped does nothing.
func (s *Session) tick(l *tickLoop) {
	start := s.clock.Now()

	s.mu.Lock()
	if s.loop != l || len(s.clients) == 0 {
		s.mu.Unlock()
		return
	}
	clients := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	r := NewReading(s.source.CurrentFrequency(), start)
	if s.demo {
		r.Demo = boolPtr(true)
	}
	data, err := json.Marshal(NewPitchMessage(r))
	if err != nil {
		s.log.Error("marshal reading", "error", err)
		return
	}

	delivered := 0
	for _, c := range clients {
		if err := c.Send(data); err != nil {
			s.remove(c.ID(), "send_failed")
			continue
		}
		delivered++
	}

	metrics.Ticks.Inc()
	metrics.ReadingsDelivered.WithLabelValues("tick").Add(float64(delivered))
	metrics.TickDuration.Observe(s.clock.Since(start).Seconds())
}

// Receive handles one client-originated frame. Anything that does not
// decode into a known message is ignored and the client stays connected.
func (s *Session) Receive(c Client, raw []byte) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		metrics.InboundMessages.WithLabelValues("invalid").Inc()
		s.log.Debug("ignoring malformed message", "client", c.ID(), "error", err)
		return
	}

	switch msg.Type {
	case MsgPing:
		metrics.InboundMessages.WithLabelValues("ping").Inc()
		s.reply(c, ControlMessage{Type: MsgPong})
	case MsgAudioData:
		metrics.InboundMessages.WithLabelValues("audio_data").Inc()
		s.receiveAudio(c, msg)
	default:
		metrics.InboundMessages.WithLabelValues("unknown").Inc()
	}
}

func (s *Session) receiveAudio(c Client, msg Inbound) {
	if msg.Frequency == nil || !pitch.InVocalBand(*msg.Frequency) {
		return
	}
	hz := *msg.Frequency

	if s.push != nil {
		s.push.Push(hz)
	}

	// The reply is stamped by the server clock; a client timestamp is ignored.
	r := NewReading(hz, s.clock.Now())
	r.Demo = boolPtr(false)
	amp := 0.0
	if msg.Amplitude != nil {
		amp = *msg.Amplitude
	}
	r.Amplitude = &amp

	if s.reply(c, NewPitchMessage(r)) {
		metrics.ReadingsDelivered.WithLabelValues("client").Inc()
	}

	if s.mode == ModeHybrid {
		s.cede()
	}
}

// cede hands a hybrid session over to client-driven readings for the rest
// of the Broadcasting period.
func (s *Session) cede() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ceded || s.state != Broadcasting {
		return
	}
	s.ceded = true
	s.stopLoopLocked()
	s.log.Info("client audio received, simulated broadcast stopped")
}

func (s *Session) reply(c Client, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal reply", "error", err)
		return false
	}
	if err := c.Send(data); err != nil {
		s.remove(c.ID(), "send_failed")
		return false
	}
	return true
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Ticking reports whether a tick loop is currently active.
func (s *Session) Ticking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop != nil
}

func (s *Session) Mode() Mode { return s.mode }

// Demo reports whether ticked readings are synthetic.
func (s *Session) Demo() bool { return s.demo }

// Stop drops every client, stops the tick loop and the source, and waits
// for the loop goroutine to exit. Later Connect calls fail with ErrClosed.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var done chan struct{}
	if s.loop != nil {
		done = s.loop.done
	}
	s.clients = make(map[string]Client)
	metrics.ConnectedClients.Set(0)
	if s.state == Broadcasting {
		s.stopLocked()
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}
