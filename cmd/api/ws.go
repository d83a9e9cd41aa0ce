package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SuperJunier666/Chatroom/internal/event"
	"github.com/SuperJunier666/Chatroom/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

// wsClient adapts one websocket connection to the relay's Sender interface.
// Outbound envelopes are queued on a buffered channel and drained by the
// write pump, so no core component ever blocks on network I/O. A client
// that cannot drain its queue gets dropped instead.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan event.Envelope
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func newWSClient(conn *websocket.Conn, buffer int, log *slog.Logger) *wsClient {
	return &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan event.Envelope, buffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// Send queues an envelope for delivery. It never blocks; a full queue or a
// closed connection reports an error so the hub detaches the sender.
func (c *wsClient) Send(env event.Envelope) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- env:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.log.Debug("write failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump feeds inbound frames to the session controller until the
// connection drops, then runs the disconnect path.
func (c *wsClient) readPump(ctrl *session.Controller) {
	defer func() {
		ctrl.Disconnect(c.id)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", "conn", c.id, "error", err)
			}
			return
		}
		ctrl.HandleEvent(ctx, c.id, raw)
	}
}
