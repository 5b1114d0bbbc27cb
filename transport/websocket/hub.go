package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pingPeriod     = 15 * time.Second
	// pongWait must exceed pingPeriod so at least one ping fits in
	// every deadline window.
	pongWait = 30 * time.Second
)

// Client is one websocket connection with a buffered outbound queue.
// All writes go through the queue so a slow reader never blocks a
// broadcast.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// close shuts the send queue down exactly once.
func (that *Client) close() {
	that.once.Do(func() {
		close(that.send)
	})
}

// writePump drains the send queue onto the wire and keeps the
// connection alive with pings. It owns all writes to the connection.
func (that *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := that.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub is the room membership fabric: it tracks connections and their
// room subscriptions and delivers room-wide and private events.
// Delivery is fire-and-forget; a full client queue drops the frame for
// that client rather than stalling the sender.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register wraps a raw connection in a Client with a fresh connection
// id and starts its writer.
func (that *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	that.mu.Lock()
	that.clients[client.ID] = client
	that.mu.Unlock()

	go client.writePump()

	return client
}

// Unregister drops the connection from every room and closes its
// writer.
func (that *Hub) Unregister(connID string) {
	that.mu.Lock()
	client, ok := that.clients[connID]
	if ok {
		delete(that.clients, connID)
	}
	for roomID, members := range that.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(that.rooms, roomID)
		}
	}
	that.mu.Unlock()

	if ok {
		client.close()
	}
}

// Join subscribes the connection to a room's broadcast group.
func (that *Hub) Join(connID, roomID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	client, ok := that.clients[connID]
	if !ok {
		return
	}

	members, ok := that.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		that.rooms[roomID] = members
	}
	members[connID] = client
}

// EmitToRoom delivers the event to every connection subscribed to the
// room.
func (that *Hub) EmitToRoom(roomID, event string, payload any) {
	frame, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		that.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, client := range that.rooms[roomID] {
		select {
		case client.send <- frame:
		default:
			that.logger.Warn("dropping frame for slow client", "connID", client.ID, "event", event)
		}
	}
}

// EmitToConnection delivers the event to a single connection.
func (that *Hub) EmitToConnection(connID, event string, payload any) {
	frame, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		that.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	client, ok := that.clients[connID]
	if !ok {
		return
	}

	select {
	case client.send <- frame:
	default:
		that.logger.Warn("dropping frame for slow client", "connID", connID, "event", event)
	}
}
