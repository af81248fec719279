package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"loginguard/internal/dispatch"
	"loginguard/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

const messageTypeAlert = "alert"

type wsMessage struct {
	Type string      `json:"type"`
	Data model.Alert `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the connection and registers it as an alert subscriber.
// Each connection is its own registration; reconnects start fresh.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "err", err)
		}
		return
	}
	registry := s.dispatcher.Registry()
	sub := registry.Subscribe()
	client := &wsClient{conn: conn, sub: sub, registry: registry, logger: s.logger}
	go client.writePump()
	go client.readPump()
}

type wsClient struct {
	conn     *websocket.Conn
	sub      *dispatch.Subscriber
	registry *dispatch.Registry
	logger   *slog.Logger
}

// readPump drains inbound frames solely to detect disconnects and keep the
// pong handler serviced.
func (c *wsClient) readPump() {
	defer func() {
		c.registry.Unsubscribe(c.sub)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.registry.Unsubscribe(c.sub)
		_ = c.conn.Close()
	}()
	for {
		select {
		case alert, ok := <-c.sub.Alerts():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(wsMessage{Type: messageTypeAlert, Data: alert}); err != nil {
				if c.logger != nil {
					c.logger.Warn("websocket write failed", "subscriber_id", c.sub.ID(), "err", err)
				}
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
