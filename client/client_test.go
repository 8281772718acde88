package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func pushNotification(t *testing.T, conn *websocket.Conn, n Notification) {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "notification", Data: data}))
}

// readRegister blocks until the peer sends its register-user message.
func readRegister(t *testing.T, conn *websocket.Conn) registerPayload {
	t.Helper()
	var msg wsMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "register-user", msg.Type)
	var reg registerPayload
	require.NoError(t, json.Unmarshal(msg.Data, &reg))
	return reg
}

func TestClient_RegisterAndBuffer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		reg := readRegister(t, conn)
		assert.Equal(t, "U1", reg.AccountID)
		assert.Equal(t, "user", reg.Role)
		for i := 0; i < 3; i++ {
			pushNotification(t, conn, Notification{
				Type:    "order-confirmed",
				Message: fmt.Sprintf("msg %d", i),
				OrderID: "O9",
				Target:  "user",
			})
		}
		// hold the connection open for the rest of the test
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	c := New(wsURL(ts), testLogger())
	c.Register("U1", "user")
	c.Start()
	defer c.Close()

	require.Eventually(t, c.Connected, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(c.Notifications()) == 3 }, 5*time.Second, 20*time.Millisecond)

	got := c.Notifications()
	assert.Equal(t, "msg 0", got[0].Message)
	assert.Equal(t, "order-confirmed", got[0].Type)
	assert.Equal(t, "O9", got[0].OrderID)

	c.Clear()
	assert.Empty(t, c.Notifications())
}

func TestClient_BufferIsBounded(t *testing.T) {
	const pushed = maxBuffered + 20

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		readRegister(t, conn)
		for i := 0; i < pushed; i++ {
			pushNotification(t, conn, Notification{Type: "order-created", Message: fmt.Sprintf("%d", i), Target: "company"})
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	c := New(wsURL(ts), testLogger())
	c.Register("C1", "company")
	c.Start()
	defer c.Close()

	require.Eventually(t, func() bool {
		got := c.Notifications()
		return len(got) == maxBuffered && got[len(got)-1].Message == fmt.Sprintf("%d", pushed-1)
	}, 5*time.Second, 20*time.Millisecond)

	// oldest entries were evicted
	got := c.Notifications()
	assert.Equal(t, "20", got[0].Message)
}

func TestClient_ReconnectReregisters(t *testing.T) {
	var connCount atomic.Int32
	registers := make(chan registerPayload, 4)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		registers <- readRegister(t, conn)
		if connCount.Add(1) == 1 {
			// simulate network loss on the first connection
			conn.Close()
			return
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	c := New(wsURL(ts), testLogger())
	c.Register("U7", "user")
	c.Start()
	defer c.Close()

	for i := 0; i < 2; i++ {
		select {
		case reg := <-registers:
			assert.Equal(t, "U7", reg.AccountID)
		case <-time.After(10 * time.Second):
			t.Fatalf("register %d never arrived", i+1)
		}
	}
	require.Eventually(t, c.Connected, 5*time.Second, 20*time.Millisecond)
}

func TestClient_CloseStopsReconnecting(t *testing.T) {
	var dials atomic.Int32
	c := New("ws://127.0.0.1:1/socket", testLogger())
	c.dial = func(url string) (*websocket.Conn, error) {
		dials.Add(1)
		return nil, fmt.Errorf("refused")
	}
	c.Start()

	require.Eventually(t, func() bool { return dials.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Close())

	settled := dials.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.LessOrEqual(t, dials.Load(), settled+1)
	assert.False(t, c.Connected())
}
