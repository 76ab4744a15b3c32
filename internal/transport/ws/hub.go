package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans inspection events out to their watchers
type Hub struct {
	// inspection id -> watchers
	watchers map[string]map[*Connection]struct{}

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	closeOnce  sync.Once

	logger *slog.Logger
}

// Connection represents one watcher of an inspection
type Connection struct {
	InspectionID string
	Send         chan []byte
	Hub          *Hub
}

// BroadcastMessage is a message to every watcher of an inspection. With
// Disconnect set the watchers are closed instead.
type BroadcastMessage struct {
	InspectionID string
	Message      *Message
	Disconnect   bool
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		watchers:   make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.watchers[conn.InspectionID] == nil {
				h.watchers[conn.InspectionID] = make(map[*Connection]struct{})
			}
			h.watchers[conn.InspectionID][conn] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Watcher connected", slog.String("inspection_id", conn.InspectionID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.watchers[conn.InspectionID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.watchers, conn.InspectionID)
					}
					h.logger.Debug("Watcher disconnected", slog.String("inspection_id", conn.InspectionID))
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			if msg.Disconnect {
				h.mu.Lock()
				for conn := range h.watchers[msg.InspectionID] {
					close(conn.Send)
				}
				delete(h.watchers, msg.InspectionID)
				h.mu.Unlock()
				continue
			}

			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.logger.Error("Failed to encode message", slog.String("type", string(msg.Message.Type)), slog.Any("error", err))
				continue
			}
			h.mu.RLock()
			for conn := range h.watchers[msg.InspectionID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Watchers returns the number of watchers of an inspection
func (h *Hub) Watchers(inspectionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[inspectionID])
}

// Close stops the hub loop
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// BroadcastToInspection sends a message to every watcher (implements service.Broadcaster)
func (h *Hub) BroadcastToInspection(inspectionID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode payload", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	h.send(&BroadcastMessage{
		InspectionID: inspectionID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	})
}

// DisconnectInspection closes every watcher once queued messages are sent (implements service.Broadcaster)
func (h *Hub) DisconnectInspection(inspectionID string) {
	h.send(&BroadcastMessage{InspectionID: inspectionID, Disconnect: true})
}

func (h *Hub) send(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}
