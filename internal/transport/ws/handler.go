package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// MsgProgressSnapshot is the first message a watcher receives
const MsgProgressSnapshot MessageType = "progress_snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// ProgressSource reports the current progress of an inspection
type ProgressSource interface {
	Progress(ctx context.Context, id string) (model.Progress, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub      *Hub
	progress ProgressSource
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, progress ProgressSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:      hub,
		progress: progress,
		logger:   logger,
	}
}

// InspectionWS handles GET /v1/ws/inspections/{id}
func (h *Handler) InspectionWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p, err := h.progress.Progress(r.Context(), id)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			http.Error(w, "inspection not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load inspection", http.StatusInternalServerError)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", slog.Any("error", err))
		return
	}

	conn := &Connection{
		InspectionID: id,
		Send:         make(chan []byte, 256),
		Hub:          h.hub,
	}

	// queued before registration so nothing can close Send underneath it
	payload, _ := json.Marshal(p)
	snapshot, _ := json.Marshal(&Message{Type: MsgProgressSnapshot, Payload: payload})
	conn.Send <- snapshot

	h.hub.Register(conn)
	h.logger.Info("Watcher connected", slog.String("inspection_id", id), slog.String("remote", r.RemoteAddr))

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", slog.String("inspection_id", conn.InspectionID), slog.Any("error", err))
			}
			break
		}
		// watchers are read-only; answers go through REST
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
