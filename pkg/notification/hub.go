package notification

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ruangluka/pkg/common"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/sessions"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub keeps the open websocket connections of every user. Each connection
// gets its own buffered queue drained by a writer goroutine, so a slow
// socket never holds mu.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*client]bool
}

type client struct {
	userId string
	conn   *websocket.Conn
	send   chan interface{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*client]bool),
	}
}

func newClient(userId string, conn *websocket.Conn) *client {
	return &client{userId: userId, conn: conn, send: make(chan interface{}, sendBuffer)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.userId] == nil {
		h.conns[c.userId] = make(map[*client]bool)
	}
	h.conns[c.userId][c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with mu held. It is a no-op for unknown clients, so
// send is closed exactly once.
func (h *Hub) drop(c *client) {
	if _, ok := h.conns[c.userId][c]; !ok {
		return
	}
	delete(h.conns[c.userId], c)
	if len(h.conns[c.userId]) == 0 {
		delete(h.conns, c.userId)
	}
	close(c.send)
}

// Connections reports how many sockets the user has open.
func (h *Hub) Connections(userId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userId])
}

// Push queues msg for every connection of the user. A connection whose
// queue is full is dropped instead of waited on.
func (h *Hub) Push(userId string, msg interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns[userId] {
		select {
		case c.send <- msg:
		default:
			logger.Log(context.TODO()).Infof("notification/hub: user %s is not reading, dropping connection", userId)
			h.drop(c)
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.unregister(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWS upgrades an authenticated request and keeps the socket registered
// until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log(r.Context()).Errorf("notification/hub: websocket upgrade failed: %v", err)
		return
	}
	c := newClient(u.Id, conn)
	h.register(c)
	logger.Log(r.Context()).Debugf("notification/hub: user %s connected", u.Id)

	go h.writePump(c)
	go h.readPump(c)
}
