package httpfront

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// BuildNotification is broadcast to connected dev-server clients after
// each successful build the Server answers in full (not with a 304), so an
// editor or browser extension can trigger a
// live reload without polling.
type BuildNotification struct {
	Target  string `json:"target"`
	Version int    `json:"version"`
}

// NotifyHub fans out BuildNotifications to every currently connected
// websocket client. One hub is shared by a Server for its whole lifetime.
type NotifyHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	writeC chan BuildNotification
}

// NewNotifyHub creates an empty hub.
func NewNotifyHub(logger *slog.Logger) *NotifyHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyHub{logger: logger, clients: make(map[*client]struct{})}
}

// ServeWS upgrades the request to a websocket connection and registers it
// with the hub until the connection closes.
func (h *NotifyHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, writeC: make(chan BuildNotification, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go h.readLoop(conn)
	h.writeLoop(c)
}

// readLoop drains and discards inbound frames purely to keep the
// connection's read deadline serviced by pong handling; clients never
// send anything meaningful over this channel.
func (h *NotifyHub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *NotifyHub) writeLoop(c *client) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case note, ok := <-c.writeC:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(note); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast pushes note to every connected client, dropping it for any
// client whose outbound buffer is full rather than blocking the build
// path on a slow reader.
func (h *NotifyHub) Broadcast(note BuildNotification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.writeC <- note:
		default:
			h.logger.Warn("dropping build notification for slow websocket client", "target", note.Target)
		}
	}
}
