package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *Registry) {
	t.Helper()
	reg := NewRegistry(testLogger())
	rt := NewRouter(reg, testLogger())
	rt.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return rt, reg
}

func register(g *Registry, c Conn, accountID, role string) {
	for _, room := range RoomsForRegistration(accountID, role) {
		g.Join(c, room)
	}
}

func TestRouter_OrderCreated(t *testing.T) {
	rt, reg := newTestRouter(t)
	company := &mockConn{id: "company"}
	admin := &mockConn{id: "admin"}
	bystander := &mockConn{id: "bystander"}
	reg.Join(company, CompanyRoom("C1"))
	reg.Join(admin, AdminRoom())
	reg.Join(bystander, UserRoom("C1"))

	err := rt.Dispatch(EvOrderCreated, EventPayload{OrderID: "O1", CompanyID: "C1"})
	require.NoError(t, err)

	got := company.getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, EvOrderCreated, got[0].Type)
	assert.Equal(t, "company", got[0].Target)
	assert.Contains(t, got[0].Message, "O1")
	assert.Equal(t, "O1", got[0].OrderID)
	assert.Equal(t, "2026-03-14T09:00:00Z", got[0].Timestamp)

	got = admin.getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, "admin", got[0].Target)
	assert.Contains(t, got[0].Message, "O1")

	assert.Empty(t, bystander.getReceived())
}

func TestRouter_RoutingTable(t *testing.T) {
	tests := []struct {
		event   string
		payload EventPayload
		// room name → expected target
		want map[string]string
	}{
		{
			event:   EvOrderCreated,
			payload: EventPayload{OrderID: "O1", CompanyID: "C1"},
			want:    map[string]string{"company-C1": "company", "admin": "admin"},
		},
		{
			event:   EvOrderConfirmed,
			payload: EventPayload{OrderID: "O2", AccountID: "U1"},
			want:    map[string]string{"user-U1": "user", "admin": "admin"},
		},
		{
			event:   EvOrderCancelled,
			payload: EventPayload{OrderID: "O3", AccountID: "U1"},
			want:    map[string]string{"user-U1": "user", "admin": "admin"},
		},
		{
			event:   EvReviewSubmitted,
			payload: EventPayload{ReviewID: "R1", CompanyID: "C1", Rating: 4},
			want:    map[string]string{"company-C1": "company", "admin": "admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			rt, _ := newTestRouter(t)
			routes, err := rt.resolve(tt.event, tt.payload)
			require.NoError(t, err)
			require.Len(t, routes, len(tt.want))
			for _, r := range routes {
				target, ok := tt.want[r.room.Name()]
				require.True(t, ok, "unexpected room %s", r.room.Name())
				assert.Equal(t, target, r.target)
			}
		})
	}
}

func TestRouter_ReviewSavedAlias(t *testing.T) {
	rt, reg := newTestRouter(t)
	company := &mockConn{id: "company"}
	reg.Join(company, CompanyRoom("C1"))

	err := rt.Dispatch("review-saved-notification", EventPayload{ReviewID: "R1", CompanyID: "C1", Rating: 5})
	require.NoError(t, err)

	got := company.getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, EvReviewSubmitted, got[0].Type)
	assert.Equal(t, 5, got[0].Rating)
	assert.Equal(t, "R1", got[0].ReviewID)
}

func TestRouter_UnknownEvent(t *testing.T) {
	rt, reg := newTestRouter(t)
	admin := &mockConn{id: "admin"}
	reg.Join(admin, AdminRoom())

	err := rt.Dispatch("bogus-event", EventPayload{OrderID: "O1"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Empty(t, admin.getReceived())
}

func TestRouter_EmptyTargetRoomDropsSilently(t *testing.T) {
	rt, _ := newTestRouter(t)
	err := rt.Dispatch(EvOrderConfirmed, EventPayload{OrderID: "O1", AccountID: "nobody"})
	assert.NoError(t, err)
}

// The end-to-end routing scenario: three registered parties, one event,
// exactly the right two receive it.
func TestRouter_OrderConfirmedFanout(t *testing.T) {
	rt, reg := newTestRouter(t)
	connA := &mockConn{id: "A"}
	connB := &mockConn{id: "B"}
	connD := &mockConn{id: "D"}
	register(reg, connA, "U1", RoleUser)
	register(reg, connB, "C1", RoleCompany)
	register(reg, connD, "X", RoleAdmin)

	err := rt.Dispatch(EvOrderConfirmed, EventPayload{OrderID: "O9", AccountID: "U1"})
	require.NoError(t, err)

	got := connA.getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, "user", got[0].Target)
	assert.Contains(t, got[0].Message, "O9")

	got = connD.getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, "admin", got[0].Target)

	assert.Empty(t, connB.getReceived())
}
