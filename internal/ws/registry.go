package ws

import (
	"encoding/json"
	"sync"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/metrics"
)

// Registry is the room membership table: appointment id -> joined sockets.
// It is the only shared mutable state in the gateway and is safe for
// concurrent use. Fan-out is local to this process; running multiple
// instances would need a pub/sub backplane, which this service does not have.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

func (r *Registry) Join(roomID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[*Client]struct{})
	}
	r.rooms[roomID][c] = struct{}{}
	if _, ok := r.byClient[c]; !ok {
		r.byClient[c] = make(map[string]struct{})
	}
	r.byClient[c][roomID] = struct{}{}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// Leave removes the client from every room it joined. Rooms vanish with
// their last member.
func (r *Registry) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.byClient[c] {
		delete(r.rooms[roomID], c)
		if len(r.rooms[roomID]) == 0 {
			delete(r.rooms, roomID)
		}
	}
	delete(r.byClient, c)
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

func (r *Registry) Members(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.rooms[roomID]))
	for c := range r.rooms[roomID] {
		out = append(out, c)
	}
	return out
}

// Broadcast fans one event out to every socket in the room, sender included.
func (r *Registry) Broadcast(roomID, event string, payload interface{}) {
	r.send(roomID, event, payload, nil)
}

// BroadcastExcept fans out to the room minus one socket; used for typing
// indicators, which the sender does not need echoed back.
func (r *Registry) BroadcastExcept(roomID, event string, payload interface{}, except *Client) {
	r.send(roomID, event, payload, except)
}

func (r *Registry) send(roomID, event string, payload interface{}, except *Client) {
	b, err := json.Marshal(outEnvelope{Event: event, Data: payload})
	if err != nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.rooms[roomID] {
		if c == except {
			continue
		}
		c.enqueue(b)
	}
}
