package websocket

import (
	"encoding/json"
	"sync"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Hub keeps the connected clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

// Client is one websocket connection of a user.
type Client struct {
	send      chan []byte
	userID    string
	academyID string
}

// Message is the envelope pushed to browsers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			h.mutex.Unlock()
			logrus.WithField("user_id", c.userID).Debug("websocket client connected")

		case c := <-h.unregister:
			h.remove(c)
			logrus.WithField("user_id", c.userID).Debug("websocket client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg, func(*Client) bool { return true })
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *Hub) remove(c *Client) {
	h.mutex.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mutex.Unlock()
}

// deliver sends msg to matching clients, dropping the ones that cannot keep up.
func (h *Hub) deliver(msg []byte, match func(*Client) bool) (sent, dropped int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
			sent++
		default:
			dropped++
			delete(h.clients, c)
			close(c.send)
		}
	}
	return sent, dropped
}

// BroadcastToUser sends message to every connection of userID.
func (h *Hub) BroadcastToUser(userID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("websocket message marshal failed")
		return
	}
	sent, dropped := h.deliver(data, func(c *Client) bool { return c.userID == userID })
	logrus.WithFields(logrus.Fields{"user_id": userID, "sent": sent, "dropped": dropped}).Debug("websocket user broadcast")
}

// BroadcastToAcademy sends message to every user of an academy.
func (h *Hub) BroadcastToAcademy(academyID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("websocket message marshal failed")
		return
	}
	h.deliver(data, func(c *Client) bool { return academyID != "" && c.academyID == academyID })
}

// Broadcast queues message for every client.
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("websocket message marshal failed")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logrus.Warn("websocket broadcast channel is full")
	}
}

func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeFiberWS pumps messages for an authenticated connection. It returns when
// the peer goes away.
func (h *Hub) ServeFiberWS(conn *fiberws.Conn, userID, academyID string) {
	client := &Client{send: make(chan []byte, sendBuffer), userID: userID, academyID: academyID}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(client, conn)
	h.readPump(client, conn)
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) writePump(c *Client, conn *fiberws.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(fiberws.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(fiberws.TextMessage, msg); err != nil {
				logrus.WithError(err).WithField("user_id", c.userID).Debug("websocket write failed")
				h.leave(c)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(fiberws.PingMessage, nil); err != nil {
				h.leave(c)
				return
			}
		}
	}
}

func (h *Hub) readPump(c *Client, conn *fiberws.Conn) {
	defer h.leave(c)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", c.userID).Debug("websocket closed unexpectedly")
			}
			return
		}
	}
}
