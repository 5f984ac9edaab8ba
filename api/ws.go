package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"order-display/models"
)

const (
	wsWriteWait      = 5 * time.Second
	wsMaxMessageSize = 4096
)

// wsClient is one display socket registered with the hub. The hub delivers
// to it from a single goroutine, so frames never interleave.
type wsClient struct {
	id   string
	conn *websocket.Conn

	closeOnce sync.Once
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Receive(ctx context.Context, ev models.Event) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(wsWriteWait)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

func (c *wsClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// handleWS upgrades a display connection and keeps it registered until the
// peer goes away or the hub drops it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{id: "display-" + uuid.NewString(), conn: conn}
	log := s.log.With(zap.String("client_id", client.id))

	if err := s.orders.Subscribe(client); err != nil {
		log.Error("subscribe failed", zap.Error(err))
		_ = client.Close()
		return
	}
	defer func() {
		s.orders.Unsubscribe(client.id)
		_ = client.Close()
		log.Info("display disconnected")
	}()
	log.Info("display connected", zap.String("remote", r.RemoteAddr))

	pongWait := 2 * s.opts.PingInterval
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	// Displays only listen; anything they send just keeps the read deadline fresh.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
