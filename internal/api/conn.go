package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slidewise/deckd/internal/logging"
)

// wsConn wraps one WebSocket connection with serialized writes. gorilla
// permits a single concurrent writer; the mutex covers both the message
// writes and the keepalive pings.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send implements Sender.
func (c *wsConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// handleWS upgrades the request and runs the connection until the client
// goes away. The read loop stays dedicated to frames and control
// messages; a single handler goroutine processes frames in receipt
// order, so a workflow step that outlasts the pong timeout never starves
// the reads that keep the deadline fresh. A ticker keeps the connection
// alive with pings.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer raw.Close()

	if s.cfg.MaxMessageBytes > 0 {
		raw.SetReadLimit(s.cfg.MaxMessageBytes)
	}

	conn := &wsConn{conn: raw}
	var orchOpts []OrchestratorOption
	if s.cp != nil {
		orchOpts = append(orchOpts, WithCheckpoints(s.cp))
	}
	orch := NewOrchestrator(s.machine, s.sessions, s.auth, conn, s.log, orchOpts...)
	defer orch.Disconnect()

	// Connection teardown cancels any in-flight workflow step.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	token := r.URL.Query().Get("token")
	sessionID := r.URL.Query().Get("session_id")
	if err := orch.Connect(ctx, token, sessionID); err != nil {
		s.log.Warn("connection rejected", "error", err.Error())
		return
	}
	log := s.log.WithSession(orch.SessionID())

	resetDeadline := func() {
		_ = raw.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	}
	raw.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	stopPings := s.startPings(ctx, conn, cancel)
	defer stopPings()

	frames := make(chan []byte, 16)
	var handler sync.WaitGroup
	handler.Add(1)
	go func() {
		defer handler.Done()
		for payload := range frames {
			orch.HandleRaw(ctx, payload)
		}
	}()

	for {
		resetDeadline()
		_, payload, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("connection read failed", "error", err.Error())
			}
			break
		}
		select {
		case frames <- payload:
		case <-ctx.Done():
		}
	}

	// Abort any in-flight step, then drain the handler before the socket
	// closes.
	cancel()
	close(frames)
	handler.Wait()
}

func (s *Server) startPings(ctx context.Context, conn *wsConn, cancel context.CancelFunc) func() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.ping(time.Now().Add(5 * time.Second)); err != nil {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func newUpgrader(allowedOrigins []string, log *logging.Logger) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if !allowed[origin] {
				log.Warn("origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}
}
