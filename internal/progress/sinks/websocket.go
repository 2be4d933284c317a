package sinks

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pubview/scholarstream/internal/progress"
	"github.com/pubview/scholarstream/internal/scholar"
)

// WebSocketConfig tunes the broadcaster.
//   - ThrottleInterval: minimum spacing between progress frames per client
//     (0 disables throttling). Lifecycle frames are never throttled.
//   - WriteTimeout: per-frame write deadline (default 5s).
type WebSocketConfig struct {
	ThrottleInterval time.Duration
	WriteTimeout     time.Duration
}

const defaultWriteTimeout = 5 * time.Second

// WebSocketSink broadcasts progress events to connected websocket clients.
// Clients subscribe via the HTTP handler and may filter to a single client
// ID; a slow or gone client is dropped rather than allowed to stall the
// batch loop.
type WebSocketSink struct {
	cfg      WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// wsClient owns one connection. writeMu serializes frames; gorilla conns do
// not tolerate concurrent writers.
type wsClient struct {
	conn      *websocket.Conn
	clientID  string
	writeMu   sync.Mutex
	throttler *rate.Limiter
}

// wsFrame is the wire form of one event.
type wsFrame struct {
	Type  string      `json:"type"`
	TS    time.Time   `json:"ts"`
	JobID string      `json:"job_id"`
	Job   scholar.Job `json:"job"`
}

// NewWebSocketSink builds the broadcaster. It serves no traffic until its
// Handler is mounted on a route.
func NewWebSocketSink(cfg WebSocketConfig, logger *zap.Logger) *WebSocketSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &WebSocketSink{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler upgrades the request and registers the connection. The optional
// client_id query parameter restricts the stream to that client's jobs.
func (s *WebSocketSink) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &wsClient{conn: conn, clientID: r.URL.Query().Get("client_id")}
		if s.cfg.ThrottleInterval > 0 {
			c.throttler = rate.NewLimiter(rate.Every(s.cfg.ThrottleInterval), 1)
		}

		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()
		s.logger.Info("websocket client connected",
			zap.String("client_id", c.clientID),
			zap.String("remote", conn.RemoteAddr().String()),
		)

		// Reader loop discards inbound frames and notices disconnects.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					s.drop(c)
					return
				}
			}
		}()
	}
}

// Consume fans each event out to the subscribed clients.
func (s *WebSocketSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.broadcast(evt)
	}
	return nil
}

func (s *WebSocketSink) broadcast(evt progress.Event) {
	frame := wsFrame{
		Type:  string(evt.Kind),
		TS:    evt.TS,
		JobID: evt.JobID,
		Job:   evt.Snapshot,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Warn("marshal websocket frame", zap.Error(err))
		return
	}

	s.mu.RLock()
	targets := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		if c.clientID != "" && c.clientID != evt.ClientID {
			continue
		}
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		// Progress frames may be thinned out; lifecycle frames always go
		// through so every client sees accept and terminal states.
		if evt.Kind == scholar.EventProgress && c.throttler != nil && !c.throttler.Allow() {
			continue
		}
		if err := s.write(c, data); err != nil {
			s.logger.Warn("websocket write failed, dropping client",
				zap.String("client_id", c.clientID),
				zap.Error(err),
			)
			s.drop(c)
		}
	}
}

func (s *WebSocketSink) write(c *wsClient, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *WebSocketSink) drop(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// ClientCount reports the number of connected clients.
func (s *WebSocketSink) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new connections.
func (s *WebSocketSink) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		c.writeMu.Lock()
		deadline := time.Now().Add(s.cfg.WriteTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
	return nil
}
