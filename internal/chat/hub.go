package chat

import "sync"

// Client is one room member as seen by the relay.
type Client struct {
	ID       string
	Room     string
	Nickname string
	Conn     Conn
	Outgoing chan []byte
}

// Hub keeps track of the members of every room and fans frames out to them.
type Hub struct {
	rooms map[string]map[*Client]struct{}
	mu    sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client to its room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[client.Room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[client.Room] = members
	}
	members[client] = struct{}{}
}

// Unregister removes a client from its room. Empty rooms are dropped.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, client.Room)
	}
}

// Broadcast queues data on the outgoing channel of every member of room.
// Members whose queue is full are skipped and returned.
func (h *Hub) Broadcast(room string, data []byte) (skipped []*Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		select {
		case client.Outgoing <- data:
		default:
			skipped = append(skipped, client)
		}
	}
	return skipped
}

// ClientCount returns the number of members in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
