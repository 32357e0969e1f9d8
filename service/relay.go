package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetconsole/models"
)

// RelayState is the lifecycle state of one log relay session.
type RelayState int

const (
	RelayIdle RelayState = iota
	RelayConnecting
	RelayAuthenticating
	RelaySubscribed
	RelayClosed
	RelayErrored
)

func (s RelayState) String() string {
	return [...]string{"IDLE", "CONNECTING", "AUTHENTICATING", "SUBSCRIBED", "CLOSED", "ERRORED"}[s]
}

const (
	// relayBufferCap bounds the visible buffer; the oldest lines are
	// evicted first once the feed has produced more than this.
	relayBufferCap = 1000

	// relayFlushPeriod decouples frame arrival rate from UI update rate:
	// incoming lines land in a pending list and move to the visible
	// buffer in one batch per tick.
	relayFlushPeriod = 100 * time.Millisecond
)

// ErrRelayClosed is returned from Open when the session was closed first.
var ErrRelayClosed = errors.New("relay session closed")

// relayFrame covers both directions of the feed protocol. Outbound the
// console sends {auth_admin, token} then {subscribe, target}; inbound the
// server sends {log, data} frames and an auth_success ack.
type relayFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Target string `json:"target,omitempty"`
	Data   string `json:"data,omitempty"`
}

// credentialSource supplies the bearer token for the auth frame. The
// session store implements it.
type credentialSource interface {
	Token() string
}

// RelaySession streams one agent's live log feed over a dedicated websocket
// and renders it into a bounded buffer. Each session belongs to exactly one
// view: the view opens it, reads from it, and closes it; sessions are never
// reused or reconnected. The dial endpoint carries a random per-view token
// so concurrent viewers never collide.
type RelaySession struct {
	agentID string
	url     string
	tokens  credentialSource

	mu      sync.Mutex
	state   RelayState
	pending []models.LogLine
	buffer  []models.LogLine
	closed  bool

	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	// Optional hooks for the websocket bridge. Set before Open. onFlush
	// runs outside the session lock, onState runs under it and must not
	// call back into the session.
	onFlush func(batch []models.LogLine)
	onState func(state RelayState)
}

// NewRelaySession prepares a session for one agent's feed. baseURL is the
// command server's HTTP base; the websocket endpoint is derived from it.
func NewRelaySession(baseURL, agentID string, tokens credentialSource) *RelaySession {
	wsBase := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)
	return &RelaySession{
		agentID: agentID,
		url:     fmt.Sprintf("%s/admin-watcher-%s", wsBase, uuid.NewString()),
		tokens:  tokens,
		done:    make(chan struct{}),
	}
}

// OnFlush registers a callback invoked with each flushed batch.
func (s *RelaySession) OnFlush(fn func(batch []models.LogLine)) { s.onFlush = fn }

// OnState registers a callback invoked on every state change.
func (s *RelaySession) OnState(fn func(state RelayState)) { s.onState = fn }

func (s *RelaySession) AgentID() string { return s.agentID }

// Open dials the feed, sends the authentication and subscription frames,
// and starts the read and flush loops. The handshake is fire-and-forget:
// the state advances to subscribed on successful connection, not on an ack;
// the ack, if one arrives, shows up as an informational line.
func (s *RelaySession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrRelayClosed
	}
	if s.state != RelayIdle {
		s.mu.Unlock()
		return fmt.Errorf("relay session already opened (state %s)", s.state)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.setStateLocked(RelayConnecting)
	s.mu.Unlock()

	// The flush timer runs for the whole life of the view, so a dial
	// failure's marker line still reaches the buffer on the next tick.
	go s.flushLoop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.fail(fmt.Errorf("dial relay: %w", err))
		return err
	}

	s.mu.Lock()
	if s.closed {
		// The view went away mid-handshake; don't leak the connection.
		s.mu.Unlock()
		conn.Close()
		return ErrRelayClosed
	}
	s.conn = conn
	s.setStateLocked(RelayAuthenticating)
	s.mu.Unlock()

	var token string
	if s.tokens != nil {
		token = s.tokens.Token()
	}
	if err := conn.WriteJSON(relayFrame{Type: "auth_admin", Token: token}); err != nil {
		s.fail(fmt.Errorf("send auth frame: %w", err))
		return err
	}
	if err := conn.WriteJSON(relayFrame{Type: "subscribe", Target: s.agentID}); err != nil {
		s.fail(fmt.Errorf("send subscribe frame: %w", err))
		return err
	}

	s.mu.Lock()
	if !s.closed && s.state == RelayAuthenticating {
		s.setStateLocked(RelaySubscribed)
	}
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// Close tears the session down from any state: the connection is closed,
// the flush timer stops, and no further buffer mutations happen. Safe to
// call more than once.
func (s *RelaySession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.state != RelayErrored {
		s.setStateLocked(RelayClosed)
	}
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	close(s.done)
}

// State returns the session's current lifecycle state.
func (s *RelaySession) State() RelayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Lines returns a copy of the visible buffer, most recent last.
func (s *RelaySession) Lines() []models.LogLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LogLine, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// readLoop drains inbound frames until the connection dies. A read error
// after Close is the expected shutdown path, not a failure.
func (s *RelaySession) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.mu.Unlock()
			if !wasClosed {
				s.fail(fmt.Errorf("relay read: %w", err))
			}
			return
		}
		s.ingest(raw)
	}
}

// ingest parses one inbound frame. Log payloads may carry several embedded
// newlines; blank lines are dropped. Anything that doesn't parse as a frame
// is kept verbatim as a single raw line so unknown senders still render.
func (s *RelaySession) ingest(raw []byte) {
	var lines []models.LogLine

	var frame relayFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		lines = append(lines, models.ClassifyLine(string(raw)))
	} else {
		switch frame.Type {
		case "auth_success":
			lines = append(lines, models.ClassifyLine(">>> Authenticated successfully"))
		case "log":
			for _, line := range strings.Split(frame.Data, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				lines = append(lines, models.ClassifyLine(line))
			}
		default:
			lines = append(lines, models.ClassifyLine(string(raw)))
		}
	}
	if len(lines) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, lines...)
}

func (s *RelaySession) flushLoop() {
	ticker := time.NewTicker(relayFlushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush moves the pending list into the visible buffer in one batch and
// truncates the buffer to the most recent relayBufferCap lines.
func (s *RelaySession) flush() {
	s.mu.Lock()
	if s.closed || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.pending
	s.pending = nil
	s.buffer = append(s.buffer, batch...)
	if over := len(s.buffer) - relayBufferCap; over > 0 {
		s.buffer = append(s.buffer[:0:0], s.buffer[over:]...)
	}
	notify := s.onFlush
	s.mu.Unlock()

	if notify != nil {
		notify(batch)
	}
}

// fail marks the session errored and queues a visible marker line. No
// reconnect is attempted; the operator reopens the view instead.
func (s *RelaySession) fail(err error) {
	log.Printf("Relay session for %s failed: %v", s.agentID, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == RelayErrored {
		return
	}
	s.setStateLocked(RelayErrored)
	s.pending = append(s.pending, models.ClassifyLine(">>> Connection error"))
}

// setStateLocked updates the state and fires the hook. The hook runs with
// the session lock held and must not call back into the session; the
// websocket bridge only does a non-blocking channel send.
func (s *RelaySession) setStateLocked(state RelayState) {
	s.state = state
	if s.onState != nil {
		s.onState(state)
	}
}
