package main

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	id       string
	mu       sync.Mutex
	received []Notification
	sendErr  error
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, n)
	return nil
}

func (m *mockConn) getReceived() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Publish(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Registry) []*mockConn
		room         Room
		wantReceived map[string]int
	}{
		{
			name: "delivers to every room member exactly once",
			setup: func(g *Registry) []*mockConn {
				c1 := &mockConn{id: "c1"}
				c2 := &mockConn{id: "c2"}
				g.Join(c1, CompanyRoom("42"))
				g.Join(c2, CompanyRoom("42"))
				return []*mockConn{c1, c2}
			},
			room:         CompanyRoom("42"),
			wantReceived: map[string]int{"c1": 1, "c2": 1},
		},
		{
			name: "join is idempotent",
			setup: func(g *Registry) []*mockConn {
				c1 := &mockConn{id: "c1"}
				g.Join(c1, CompanyRoom("42"))
				g.Join(c1, CompanyRoom("42"))
				return []*mockConn{c1}
			},
			room:         CompanyRoom("42"),
			wantReceived: map[string]int{"c1": 1},
		},
		{
			name: "no cross-room delivery",
			setup: func(g *Registry) []*mockConn {
				other := &mockConn{id: "other"}
				sameID := &mockConn{id: "sameid"}
				g.Join(other, CompanyRoom("43"))
				g.Join(sameID, UserRoom("42"))
				return []*mockConn{other, sameID}
			},
			room:         CompanyRoom("42"),
			wantReceived: map[string]int{"other": 0, "sameid": 0},
		},
		{
			name: "one failed send does not stop the rest",
			setup: func(g *Registry) []*mockConn {
				broken := &mockConn{id: "broken", sendErr: errors.New("gone")}
				ok := &mockConn{id: "ok"}
				g.Join(broken, AdminRoom())
				g.Join(ok, AdminRoom())
				return []*mockConn{broken, ok}
			},
			room:         AdminRoom(),
			wantReceived: map[string]int{"broken": 0, "ok": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewRegistry(testLogger())
			conns := tt.setup(g)

			g.Publish(tt.room, Notification{Type: EvOrderCreated, Message: "m"})

			for _, c := range conns {
				assert.Len(t, c.getReceived(), tt.wantReceived[c.ID()], "conn %s", c.ID())
			}
		})
	}
}

func TestRegistry_EmptyRoomIsSilentNoop(t *testing.T) {
	g := NewRegistry(testLogger())
	delivered := g.Publish(CompanyRoom("999"), Notification{Type: EvOrderCreated})
	assert.Equal(t, 0, delivered)
}

func TestRegistry_LeaveAll(t *testing.T) {
	g := NewRegistry(testLogger())
	c := &mockConn{id: "c1"}
	g.Join(c, UserRoom("7"))
	g.Join(c, AdminRoom())

	rooms, conns := g.Stats()
	require.Equal(t, 2, rooms)
	require.Equal(t, 1, conns)

	g.LeaveAll(c)

	for _, room := range []Room{UserRoom("7"), AdminRoom(), CompanyRoom("7")} {
		assert.Equal(t, 0, g.Publish(room, Notification{Type: EvOrderConfirmed}))
	}
	assert.Empty(t, c.getReceived())

	rooms, conns = g.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, conns)
}

func TestRegistry_Leave(t *testing.T) {
	g := NewRegistry(testLogger())
	c := &mockConn{id: "c1"}

	// leaving a room it never joined must not fail
	g.Leave(c, UserRoom("7"))

	g.Join(c, UserRoom("7"))
	g.Leave(c, UserRoom("7"))
	assert.Equal(t, 0, g.Publish(UserRoom("7"), Notification{Type: EvOrderCancelled}))
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "user-12", UserRoom("12").Name())
	assert.Equal(t, "company-12", CompanyRoom("12").Name())
	assert.Equal(t, "admin", AdminRoom().Name())
}

func TestRoomsForRegistration(t *testing.T) {
	tests := []struct {
		role string
		want []string
	}{
		{RoleUser, []string{"user-9"}},
		{RoleCompany, []string{"user-9", "company-9"}},
		{RoleAdmin, []string{"user-9", "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			var names []string
			for _, r := range RoomsForRegistration("9", tt.role) {
				names = append(names, r.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
