package main

import (
	"log/slog"
	"sync"
)

// Notification is the value pushed to clients. Target denotes the intended
// audience class for client-side display, independent of the delivering room.
type Notification struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId,omitempty"`
	ReviewID  string `json:"reviewId,omitempty"`
	Rating    int    `json:"rating,omitempty"`
	Target    string `json:"target"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Conn is one live client connection as the registry sees it.
type Conn interface {
	ID() string
	Send(n Notification) error
}

// Registry tracks which connections are joined to which rooms. It owns the
// room→connections map exclusively; all access goes through Join/Leave/Publish.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
	conns map[string]map[string]struct{} // conn id → room names, for cleanup
	byID  map[string]Conn
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Conn),
		conns: make(map[string]map[string]struct{}),
		byID:  make(map[string]Conn),
		log:   log,
	}
}

// Join adds the connection to the room. Idempotent; unknown rooms are created
// on first join.
func (g *Registry) Join(c Conn, room Room) {
	name := room.Name()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[name] == nil {
		g.rooms[name] = make(map[string]Conn)
	}
	g.rooms[name][c.ID()] = c
	if g.conns[c.ID()] == nil {
		g.conns[c.ID()] = make(map[string]struct{})
	}
	g.conns[c.ID()][name] = struct{}{}
	g.byID[c.ID()] = c
}

// Leave removes one membership. A no-op if the connection was never a member.
func (g *Registry) Leave(c Conn, room Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(c.ID(), room.Name())
}

// LeaveAll removes every membership of the connection; called on disconnect.
func (g *Registry) LeaveAll(c Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name := range g.conns[c.ID()] {
		g.leaveLocked(c.ID(), name)
	}
	delete(g.conns, c.ID())
	delete(g.byID, c.ID())
}

func (g *Registry) leaveLocked(connID, name string) {
	if subs, ok := g.rooms[name]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(g.rooms, name)
		}
	}
	if rooms, ok := g.conns[connID]; ok {
		delete(rooms, name)
	}
}

// Publish delivers n to every connection currently in the room. An empty room
// is a silent no-op. A failed send is logged and does not stop delivery to the
// rest of the room. Returns the number of successful deliveries.
func (g *Registry) Publish(room Room, n Notification) int {
	name := room.Name()
	g.mu.RLock()
	subs := make([]Conn, 0, len(g.rooms[name]))
	for _, c := range g.rooms[name] {
		subs = append(subs, c)
	}
	g.mu.RUnlock()

	delivered := 0
	for _, c := range subs {
		if err := c.Send(n); err != nil {
			g.log.Warn("notification send failed", "room", name, "conn", c.ID(), "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Stats reports current room and connection counts.
func (g *Registry) Stats() (rooms, conns int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms), len(g.byID)
}
