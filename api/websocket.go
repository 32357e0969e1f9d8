package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fleetconsole/models"
	"fleetconsole/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the console UI may be served from another origin
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// streamFrame is what the bridge sends to the browser: either a batch of
// flushed log lines or a session state change.
type streamFrame struct {
	Type  string           `json:"type"` // "log" or "status"
	State string           `json:"state,omitempty"`
	Lines []models.LogLine `json:"lines,omitempty"`
}

// StreamLogs bridges one browser websocket to one upstream relay session.
// The session is created when the browser connects and closed when it goes
// away; nothing survives across view visits.
func (h *Handlers) StreamLogs(c *gin.Context) {
	agentID := c.Param("id")
	if _, ok := h.agents.Get(agentID); !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse("unknown agent: "+agentID))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Log stream upgrade failed: %v", err)
		return
	}

	send := make(chan []byte, 64)
	done := make(chan struct{})

	relay := service.NewRelaySession(h.serverURL, agentID, h.session)
	relay.OnFlush(func(batch []models.LogLine) {
		enqueue(send, streamFrame{Type: "log", Lines: batch})
	})
	relay.OnState(func(state service.RelayState) {
		enqueue(send, streamFrame{Type: "status", State: state.String()})
	})

	go writePump(conn, send, done)

	// The relay outlives this request's context: it ends when the browser
	// disconnects, not when the HTTP handshake finishes.
	if err := relay.Open(context.Background()); err != nil {
		log.Printf("Relay open for %s failed: %v", agentID, err)
		// The session already queued its error marker and state change;
		// keep the socket up so the browser renders them.
	}

	// Drain the browser side until it disconnects. Inbound payloads are
	// ignored; the browser only talks to us by closing.
	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	relay.Close()
	close(done)
	conn.Close()
}

// enqueue marshals a frame and drops it if the browser can't keep up. A
// slow client loses the dropped batch for good; blocking instead would
// stall the session's flush loop, and for status frames the session lock.
func enqueue(send chan []byte, frame streamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Failed to marshal stream frame: %v", err)
		return
	}
	select {
	case send <- payload:
	default:
		log.Printf("Log stream client slow, dropping frame")
	}
}

func writePump(conn *websocket.Conn, send chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
