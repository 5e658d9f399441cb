package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pitchcast/pitchcast/internal/metrics"
	"github.com/pitchcast/pitchcast/internal/note"
	"github.com/pitchcast/pitchcast/internal/pitch"
	"github.com/pitchcast/pitchcast/internal/procstat"
	"github.com/pitchcast/pitchcast/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"
)

// StatsSampler reports process resource usage for /status.
type StatsSampler interface {
	Sample(ctx context.Context) (procstat.Stats, error)
}

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MessageRate    float64
	MessageBurst   int

	// Frontend serves everything not matched by an API route. Optional.
	Frontend http.Handler
	// Health is the capture device's tracker, nil for non-device sources.
	Health  *pitch.Health
	Stats   StatsSampler
	Version string
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

type Server struct {
	sess           *session.Session
	opts           Options
	clientOpts     clientOptions
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	log            *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	// concurrent /status requests share one process sample
	statsGroup singleflight.Group
}

func NewServer(sess *session.Session, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		sess: sess,
		opts: opts,
		clientOpts: clientOptions{
			sendBuffer:   opts.SendBuffer,
			writeTimeout: opts.WriteTimeout,
			pingInterval: opts.PingInterval,
			messageRate:  opts.MessageRate,
			messageBurst: opts.MessageBurst,
			clock:        opts.Clock,
		},
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		log:            opts.Logger.With("component", "ws"),
		clients:        make(map[*client]struct{}),
	}

	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/api", cors(http.HandlerFunc(s.handleInfo)))
	mux.Handle("/notes", cors(http.HandlerFunc(s.handleNotes)))
	mux.Handle("/status", cors(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/metrics", promhttp.Handler())

	if s.opts.Frontend != nil {
		s.log.Info("serving frontend")
		mux.Handle("/", s.opts.Frontend)
	} else {
		mux.HandleFunc("/", s.handleRoot)
	}
}

// Handler returns the full route set wrapped in the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(conn, s.clientOpts)
	if err := s.sess.Connect(c); err != nil {
		reason := "closed"
		if errors.Is(err, session.ErrTooManyClients) {
			reason = "max_connections"
		}
		metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
		s.log.Warn("ws connection rejected", "remote", r.RemoteAddr, "reason", reason)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	s.track(c)
	s.log.Info("ws client connected", "client", c.ID(), "remote", r.RemoteAddr)

	go c.writePump(func() {
		s.sess.Disconnect(c)
		s.untrack(c)
	})
	go s.readLoop(c)
}

// readLoop forwards text frames to the session until the peer goes away.
func (s *Server) readLoop(c *client) {
	defer func() {
		c.close()
		s.sess.Disconnect(c)
		s.log.Info("ws client disconnected", "client", c.ID())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("ws read error", "client", c.ID(), "error", err)
			}
			return
		}
		c.extendReadDeadline()
		if mt != websocket.TextMessage {
			continue
		}
		if !c.allow() {
			metrics.InboundMessages.WithLabelValues("limited").Inc()
			continue
		}
		s.sess.Receive(c, data)
	}
}

func (s *Server) track(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// Close sends a close frame to every connected client.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, InfoResponse{
		Message:   "pitchcast is running",
		Version:   s.opts.Version,
		Mode:      s.sess.Mode(),
		Endpoints: endpoints,
	})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, NotesResponse{Notes: note.All(notesMinOctave, notesMaxOctave)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	demo := s.sess.Demo()
	resp := StatusResponse{
		Status:      "running",
		Mode:        s.sess.Mode(),
		Demo:        demo,
		State:       s.sess.State(),
		Connections: s.sess.ClientCount(),
		Ticking:     s.sess.Ticking(),
		Features: Features{
			WebSocket:      true,
			PitchDetection: s.opts.Health != nil,
			AudioInput:     s.opts.Health != nil || s.sess.Mode() != session.ModePull,
			SimulatedData:  demo,
		},
	}
	if s.opts.Health != nil {
		snap := s.opts.Health.Snapshot()
		resp.Source = &snap
	}
	if s.opts.Stats != nil {
		stats, err := s.sampleStats(r.Context())
		if err != nil {
			s.log.Debug("process stats unavailable", "error", err)
		} else {
			resp.Process = &stats
		}
	}
	writeJSON(w, resp)
}

func (s *Server) sampleStats(ctx context.Context) (procstat.Stats, error) {
	v, err, _ := s.statsGroup.Do("process", func() (any, error) {
		return s.opts.Stats.Sample(context.WithoutCancel(ctx))
	})
	if err != nil {
		return procstat.Stats{}, err
	}
	return v.(procstat.Stats), nil
}

// handleRoot answers the bare root with the service banner when no frontend
// is configured.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.handleInfo(w, r)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.originAllowed(r) {
		return true
	}
	metrics.ConnectionsRejected.WithLabelValues("origin").Inc()
	s.log.Warn("ws origin rejected", "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
	return false
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// cors opens the read-only API routes to any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet, http.MethodHead:
			next.ServeHTTP(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves handler until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, host string, port int, handler http.Handler, logger *slog.Logger) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
