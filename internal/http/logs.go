package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/metrics"
	"github.com/YaganovValera/quote-stream/internal/sink"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxClientFrame = 4 << 10
)

// handleLogs upgrades to a websocket and streams every session event as a
// text frame until the client leaves. ?format=json switches from the
// operator line format to one JSON object per frame.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return s.origins.allowsRequest(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("logs: upgrade failed", zap.Error(err))
		return
	}

	c := &logClient{
		conn: conn,
		hub:  s.hub,
		sub:  s.hub.Join(),
		json: r.URL.Query().Get("format") == "json",
		log:  s.log.Named("logs").With(zap.String("remote", conn.RemoteAddr().String())),
	}
	metrics.LogClients.Inc()
	c.log.Debug("client attached")

	go c.writePump()
	c.readPump()
}

type logClient struct {
	conn *websocket.Conn
	hub  LogHub
	sub  *sink.Subscriber
	json bool
	log  *logger.Logger
}

// readPump only watches for the client going away; inbound text is
// ignored. Leaving the hub closes the subscriber channel, which stops
// writePump.
func (c *logClient) readPump() {
	defer func() {
		c.hub.Leave(c.sub)
		metrics.LogClients.Dec()
		c.log.Debug("client detached")
	}()
	c.conn.SetReadLimit(maxClientFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *logClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msg, err := c.render(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *logClient) render(ev sink.Event) ([]byte, error) {
	if c.json {
		return json.Marshal(ev)
	}
	return []byte(ev.String()), nil
}
