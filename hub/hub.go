// Package hub provides connection management for WebSocket event
// subscribers, fanning step events out per thread.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"querygraph/domain"
)

// Connection represents a single WebSocket subscriber.
type Connection struct {
	ID       string
	ThreadID string
	Conn     *websocket.Conn
	Send     chan []byte
	hub      *Hub
}

// Hub manages all WebSocket subscribers.
type Hub struct {
	connections map[string]*Connection
	threads     map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *threadMessage

	logger *zap.Logger
	mu     sync.RWMutex
}

type threadMessage struct {
	threadID string
	data     []byte
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		threads:     make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *threadMessage, 256),
		logger:      logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.threads[conn.ThreadID] == nil {
				h.threads[conn.ThreadID] = make(map[string]bool)
			}
			h.threads[conn.ThreadID][conn.ID] = true
			h.mu.Unlock()
			h.logger.Debug("subscriber registered", zap.String("conn_id", conn.ID), zap.String("thread_id", conn.ThreadID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if h.threads[conn.ThreadID] != nil {
					delete(h.threads[conn.ThreadID], conn.ID)
					if len(h.threads[conn.ThreadID]) == 0 {
						delete(h.threads, conn.ThreadID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			h.logger.Debug("subscriber unregistered", zap.String("conn_id", conn.ID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.threads[msg.threadID] {
				if conn, exists := h.connections[connID]; exists {
					select {
					case conn.Send <- msg.data:
					default:
						// Buffer full, drop the subscriber.
						h.logger.Warn("subscriber buffer full, closing", zap.String("conn_id", connID))
						go h.Unregister(conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish fans a step event out to the thread's subscribers. Implements
// the executor's event sink.
func (h *Hub) Publish(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &threadMessage{threadID: event.ThreadID, data: data}:
	default:
		h.logger.Warn("broadcast buffer full, dropping event", zap.String("thread_id", event.ThreadID))
	}
}

// NewConnection creates a subscriber for a thread and registers it.
func (h *Hub) NewConnection(ws *websocket.Conn, threadID string) *Connection {
	conn := &Connection{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		Conn:     ws,
		Send:     make(chan []byte, 256),
		hub:      h,
	}
	h.register <- conn
	return conn
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// WritePump drains the send channel to the socket until it closes.
func (c *Connection) WritePump() {
	defer c.Conn.Close()
	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
