package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/notifications"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Manager handles WebSocket connections and fans events out to them
type Manager struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID     string
	UserID string
	Role   string
	Conn   *websocket.Conn
	Send   chan notifications.Event
}

// Hub owns the connection set; all mutations go through its loop.
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan notifications.Event
	register    chan *Connection
	unregister  chan *Connection
	count       chan chan int
	stop        chan struct{}
	stopOnce    sync.Once
}

var _ notifications.Publisher = (*Manager)(nil)

// NewManager creates a new WebSocket manager and starts its hub.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	hub := &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan notifications.Event, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		count:       make(chan chan int),
		stop:        make(chan struct{}),
	}
	go hub.run(logger)

	return &Manager{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (h *Hub) run(logger *zap.Logger) {
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
		case conn := <-h.unregister:
			if h.connections[conn] {
				delete(h.connections, conn)
				close(conn.Send)
			}
		case event := <-h.broadcast:
			for conn := range h.connections {
				if !event.Reaches(conn.UserID, conn.Role) {
					continue
				}
				select {
				case conn.Send <- event:
				default:
					// slow consumer
					logger.Warn("Dropping websocket client", zap.String("connection_id", conn.ID))
					delete(h.connections, conn)
					close(conn.Send)
				}
			}
		case reply := <-h.count:
			reply <- len(h.connections)
		case <-h.stop:
			for conn := range h.connections {
				delete(h.connections, conn)
				close(conn.Send)
			}
			return
		}
	}
}

// Publish queues event for delivery. It never blocks the caller: when the
// hub is saturated the event is dropped.
func (m *Manager) Publish(ctx context.Context, event notifications.Event) {
	select {
	case m.hub.broadcast <- event:
	case <-m.hub.stop:
	default:
		m.logger.Warn("Websocket broadcast queue full", zap.String("event", string(event.Type)))
	}
}

// ConnectionCount returns the number of live subscribers.
func (m *Manager) ConnectionCount() int {
	reply := make(chan int, 1)
	select {
	case m.hub.count <- reply:
		return <-reply
	case <-m.hub.stop:
		return 0
	}
}

// Close disconnects every client and stops the hub.
func (m *Manager) Close() {
	m.hub.stopOnce.Do(func() { close(m.hub.stop) })
}

// HandleConnection upgrades the request and subscribes the caller.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID, role string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		Conn:   conn,
		Send:   make(chan notifications.Event, sendBuffer),
	}

	select {
	case m.hub.register <- connection:
	case <-m.hub.stop:
		conn.Close()
		return nil, fmt.Errorf("websocket hub stopped")
	}

	go m.readPump(connection)
	go m.writePump(connection)

	m.logger.Debug("Websocket client connected",
		zap.String("connection_id", connection.ID),
		zap.String("user_id", userID),
	)
	return connection, nil
}

// readPump discards client frames and keeps the read deadline fresh.
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		select {
		case m.hub.unregister <- conn:
		case <-m.hub.stop:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	_ = conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("Websocket read error", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps events from the hub to the WebSocket connection
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Send:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
