package ws

import (
	"sync"

	"github.com/mottyeytan/HeadToHead/internal/types"
)

// Hub fans server messages out to connections, grouped by room. It is the
// broadcast side of the gateway: the session engine publishes through it
// without knowing anything about websockets.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]chan types.ServerMessage
	rooms map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]chan types.ServerMessage),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register creates the outbox for a new connection. The returned channel is
// closed when the connection is unregistered or falls too far behind.
func (h *Hub) Register(connID string) <-chan types.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(chan types.ServerMessage, 32)
	h.conns[connID] = out
	return out
}

// Unregister closes the connection's outbox and removes it from every room.
// Safe to call for an already-removed connection.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(connID)
}

// JoinRoom subscribes the connection to a room's broadcasts.
func (h *Hub) JoinRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

// LeaveRoom unsubscribes the connection from a room.
func (h *Hub) LeaveRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast sends to every connection in the room. A connection whose
// outbox is full is dropped rather than allowed to stall the room.
func (h *Hub) Broadcast(roomID string, msg types.ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.rooms[roomID] {
		h.sendLocked(connID, msg)
	}
}

// Send targets a single connection.
func (h *Hub) Send(connID string, msg types.ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(connID, msg)
}

func (h *Hub) sendLocked(connID string, msg types.ServerMessage) {
	out, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case out <- msg:
	default:
		// Slow consumer: drop the connection, not the room.
		h.dropLocked(connID)
	}
}

func (h *Hub) dropLocked(connID string) {
	out, ok := h.conns[connID]
	if !ok {
		return
	}
	close(out)
	delete(h.conns, connID)
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}
