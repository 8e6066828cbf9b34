package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/arena/pkg/hub"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	sendBufferSize = 32
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errConnClosed     = errors.New("connection closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Observers are anonymous; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a WebSocket to hub.Connection.
// Frames are queued to a write pump; a full queue makes Send fail instead of blocking the hub.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newWSConn(ws *websocket.Conn, logger *slog.Logger) *wsConn {
	id := uuid.NewString()
	return &wsConn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With("conn_id", id),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

// writePump owns all writes to the socket.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes frames still queued when the connection is closed.
func (c *wsConn) flush() {
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// serveWebSocket upgrades the request and attaches it to the session named by ?room=.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("room")
	if key == "" {
		key = hub.DefaultSessionKey
	}
	h, err := s.registry.Get(key)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	conn := newWSConn(ws, s.logger.With("session_id", key))
	go conn.writePump()

	ctx := r.Context()
	if err := h.Attach(ctx, conn); err != nil {
		s.logger.Warn("failed to attach observer", "session_id", key, "err", err)
		_ = conn.Close()
		return
	}
	defer func() {
		_ = h.Detach(context.WithoutCancel(ctx), conn)
		_ = conn.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Debug("websocket closed unexpectedly", "err", err)
			}
			return
		}
		select {
		case <-conn.done:
			return
		default:
		}
		if err := h.HandleFrame(ctx, data); err != nil {
			conn.logger.Warn("failed to handle inbound frame", "err", err)
		}
	}
}
