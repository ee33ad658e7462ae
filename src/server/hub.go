package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Connection registry
// -----------------------------------------------------------------------------

// ConnectionRegistry is the set of live client connections. Broadcasts
// snapshot the set under the read lock and send outside it.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]interfaces.IConnection
	Logger      *logger.Logger
}

// -----------------------------------------------------------------------------

func NewConnectionRegistry(log *logger.Logger) *ConnectionRegistry {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConnectionRegistry{
		connections: make(map[string]interfaces.IConnection),
		Logger:      log,
	}
}

// -----------------------------------------------------------------------------

func (r *ConnectionRegistry) Add(conn interfaces.IConnection) {
	r.mu.Lock()
	r.connections[conn.ID()] = conn
	total := len(r.connections)
	r.mu.Unlock()

	r.Logger.Info("Client %s connected (%d total)", conn.ID(), total)
}

// -----------------------------------------------------------------------------

// Remove drops a connection. Removing an unknown connection is a no-op.
func (r *ConnectionRegistry) Remove(conn interfaces.IConnection) {
	r.mu.Lock()
	_, existed := r.connections[conn.ID()]
	delete(r.connections, conn.ID())
	total := len(r.connections)
	r.mu.Unlock()

	if existed {
		r.Logger.Info("Client %s disconnected (%d total)", conn.ID(), total)
	}
}

// -----------------------------------------------------------------------------

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// -----------------------------------------------------------------------------

// Broadcast serializes message once and sends it to every open connection.
// Strings and byte slices are sent as-is. A failed send is logged and does
// not remove the connection. It returns the number of successful sends.
func (r *ConnectionRegistry) Broadcast(message interface{}) int {
	var frame []byte
	switch m := message.(type) {
	case string:
		frame = []byte(m)
	case []byte:
		frame = m
	default:
		b, err := json.Marshal(message)
		if err != nil {
			r.Logger.Error("Broadcast: cannot serialize %T: %v", message, err)
			return 0
		}
		frame = b
	}

	r.mu.RLock()
	targets := make([]interfaces.IConnection, 0, len(r.connections))
	for _, c := range r.connections {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if !c.IsOpen() {
			continue
		}
		if err := c.Send(frame); err != nil {
			r.Logger.Warning("Broadcast to client %s failed: %v", c.ID(), err)
			continue
		}
		sent++
	}
	return sent
}

// -----------------------------------------------------------------------------
// WebSocket endpoint
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := NewClient(conn, s.Registry, s.Frames, s.Logger)
	s.Registry.Add(client)

	go client.writePump()
	go client.readPump()
}
