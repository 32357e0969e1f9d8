package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fleetconsole/models"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

func newTestRelay() *RelaySession {
	return NewRelaySession("http://feed.local", "agent-1", staticToken("tok-1"))
}

func lineTexts(lines []models.LogLine) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line.Text
	}
	return out
}

func TestIngestSplitsLogPayload(t *testing.T) {
	rs := newTestRelay()
	rs.ingest([]byte(`{"type":"log","data":"line1\nline2\n\nline3"}`))
	rs.flush()

	got := lineTexts(rs.Lines())
	want := []string{"line1", "line2", "line3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines (blank dropped), got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIngestAckAndUnknownFrames(t *testing.T) {
	rs := newTestRelay()
	rs.ingest([]byte(`{"type":"auth_success"}`))
	rs.ingest([]byte(`{"type":"metrics","cpu":93}`))
	rs.ingest([]byte(`not json at all`))
	rs.flush()

	got := lineTexts(rs.Lines())
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %v", got)
	}
	if got[0] != ">>> Authenticated successfully" {
		t.Errorf("ack should become an informational line, got %q", got[0])
	}
	if got[1] != `{"type":"metrics","cpu":93}` {
		t.Errorf("unknown frame should be kept verbatim, got %q", got[1])
	}
	if got[2] != "not json at all" {
		t.Errorf("unparseable frame should be kept verbatim, got %q", got[2])
	}
}

func TestBufferEviction(t *testing.T) {
	rs := newTestRelay()
	for i := 1; i <= 1050; i++ {
		rs.ingest([]byte(fmt.Sprintf(`{"type":"log","data":"line-%04d"}`, i)))
		if i%100 == 0 {
			rs.flush()
		}
	}
	rs.flush()

	lines := rs.Lines()
	if len(lines) != relayBufferCap {
		t.Fatalf("buffer should hold exactly %d lines, got %d", relayBufferCap, len(lines))
	}
	if lines[0].Text != "line-0051" {
		t.Errorf("oldest retained line should be line-0051, got %q", lines[0].Text)
	}
	if lines[len(lines)-1].Text != "line-1050" {
		t.Errorf("newest line should be line-1050, got %q", lines[len(lines)-1].Text)
	}
}

func TestNoMutationAfterClose(t *testing.T) {
	rs := newTestRelay()
	rs.ingest([]byte(`{"type":"log","data":"before"}`))
	rs.flush()
	rs.Close()

	rs.ingest([]byte(`{"type":"log","data":"after"}`))
	rs.flush()

	if got := lineTexts(rs.Lines()); len(got) != 1 || got[0] != "before" {
		t.Errorf("buffer must be frozen after close, got %v", got)
	}
	if rs.State() != RelayClosed {
		t.Errorf("state = %s, want CLOSED", rs.State())
	}

	// Close is idempotent.
	rs.Close()
}

func TestPerViewTokensDiffer(t *testing.T) {
	a := NewRelaySession("http://feed.local", "agent-1", nil)
	b := NewRelaySession("http://feed.local", "agent-1", nil)
	if a.url == b.url {
		t.Errorf("two views of the same agent must not share an endpoint: %s", a.url)
	}
	if !strings.HasPrefix(a.url, "ws://feed.local/admin-watcher-") {
		t.Errorf("unexpected endpoint %s", a.url)
	}
}

// feedServer is a minimal stand-in for the server side of the log feed.
type feedServer struct {
	t      *testing.T
	frames []string // log payloads sent after the handshake
	got    chan relayFrame
}

func (f *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/admin-watcher-") {
		http.NotFound(w, r)
		return
	}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var frame relayFrame
		if err := conn.ReadJSON(&frame); err != nil {
			f.t.Errorf("read handshake frame: %v", err)
			return
		}
		f.got <- frame
	}

	conn.WriteJSON(relayFrame{Type: "auth_success"})
	for _, payload := range f.frames {
		conn.WriteJSON(relayFrame{Type: "log", Data: payload})
	}

	// Hold the connection open until the client goes away. Silence on the
	// feed is valid and must not look like a failure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRelayLifecycle(t *testing.T) {
	feed := &feedServer{
		t:      t,
		frames: []string{"hello from agent\nsecond line"},
		got:    make(chan relayFrame, 2),
	}
	server := httptest.NewServer(feed)
	defer server.Close()

	rs := NewRelaySession(server.URL, "agent-1", staticToken("tok-1"))
	if err := rs.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rs.Close()

	if rs.State() != RelaySubscribed {
		t.Errorf("state after open = %s, want SUBSCRIBED", rs.State())
	}

	auth := <-feed.got
	if auth.Type != "auth_admin" || auth.Token != "tok-1" {
		t.Errorf("first frame should authenticate, got %+v", auth)
	}
	sub := <-feed.got
	if sub.Type != "subscribe" || sub.Target != "agent-1" {
		t.Errorf("second frame should subscribe, got %+v", sub)
	}

	waitFor(t, "log lines to flush", func() bool { return len(rs.Lines()) >= 3 })
	got := lineTexts(rs.Lines())
	want := []string{">>> Authenticated successfully", "hello from agent", "second line"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRelayFlushNotifiesBridge(t *testing.T) {
	feed := &feedServer{t: t, frames: []string{"one\ntwo"}, got: make(chan relayFrame, 2)}
	server := httptest.NewServer(feed)
	defer server.Close()

	batches := make(chan []models.LogLine, 8)
	rs := NewRelaySession(server.URL, "agent-1", staticToken("tok-1"))
	rs.OnFlush(func(batch []models.LogLine) { batches <- batch })
	if err := rs.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rs.Close()

	var texts []string
	deadline := time.After(2 * time.Second)
	for len(texts) < 3 {
		select {
		case batch := <-batches:
			texts = append(texts, lineTexts(batch)...)
		case <-deadline:
			t.Fatalf("flush callback never delivered all lines, got %v", texts)
		}
	}
}

func TestRelayDialFailureMarksErrored(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing is listening anymore

	rs := NewRelaySession(server.URL, "agent-1", staticToken("tok-1"))
	if err := rs.Open(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	defer rs.Close()

	if rs.State() != RelayErrored {
		t.Errorf("state = %s, want ERRORED", rs.State())
	}
	waitFor(t, "error marker line", func() bool { return len(rs.Lines()) == 1 })
	if got := rs.Lines()[0].Text; got != ">>> Connection error" {
		t.Errorf("expected marker line, got %q", got)
	}
}

func TestCloseDuringConnect(t *testing.T) {
	// The server stalls the handshake so Close races the dial.
	stall := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-stall
		http.NotFound(w, r)
	}))
	defer server.Close()
	defer close(stall)

	rs := NewRelaySession(server.URL, "agent-1", staticToken("tok-1"))
	opened := make(chan error, 1)
	go func() { opened <- rs.Open(context.Background()) }()

	waitFor(t, "connecting state", func() bool { return rs.State() == RelayConnecting })
	rs.Close()

	if err := <-opened; err == nil {
		t.Fatal("open should fail once the view is closed mid-handshake")
	}
	if rs.State() != RelayClosed {
		t.Errorf("state = %s, want CLOSED", rs.State())
	}
}

func TestRelayServerDropMarksErrored(t *testing.T) {
	feed := &feedServer{t: t, got: make(chan relayFrame, 2)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Accept the full handshake, then drop mid-session.
		for i := 0; i < 2; i++ {
			var frame relayFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			feed.got <- frame
		}
		conn.Close()
	}))
	defer server.Close()

	rs := NewRelaySession(server.URL, "agent-1", staticToken("tok-1"))
	if err := rs.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rs.Close()

	waitFor(t, "errored state", func() bool { return rs.State() == RelayErrored })
	waitFor(t, "error marker", func() bool {
		lines := lineTexts(rs.Lines())
		return len(lines) > 0 && lines[len(lines)-1] == ">>> Connection error"
	})
}

func TestRelayStateStrings(t *testing.T) {
	states := map[RelayState]string{
		RelayIdle:           "IDLE",
		RelayConnecting:     "CONNECTING",
		RelayAuthenticating: "AUTHENTICATING",
		RelaySubscribed:     "SUBSCRIBED",
		RelayClosed:         "CLOSED",
		RelayErrored:        "ERRORED",
	}
	for state, want := range states {
		if state.String() != want {
			t.Errorf("%d.String() = %s, want %s", state, state.String(), want)
		}
	}
}
