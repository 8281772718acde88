package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var errSendBufferFull = errors.New("send buffer full")

// wsMessage is the envelope for everything crossing the socket, both ways.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type registerPayload struct {
	AccountID string `json:"accountId"`
	Role      string `json:"role"`
}

// socketServer owns the transport endpoint and the internal emit endpoint.
// It is constructed in main and handed the registry and router by reference.
type socketServer struct {
	reg    *Registry
	router *Router
	log    *slog.Logger
}

func newSocketServer(reg *Registry, router *Router, log *slog.Logger) *socketServer {
	return &socketServer{reg: reg, router: router, log: log}
}

// sockConn adapts one gorilla connection to the registry's Conn interface.
// Send is fire-and-forget: a full buffer fails this subscriber only.
type sockConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

func (c *sockConn) ID() string { return c.id }

func (c *sockConn) Send(n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(wsMessage{Type: "notification", Data: data})
	if err != nil {
		return err
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

// GET /api/socket
func (s *socketServer) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("socket upgrade", "err", err)
		return
	}
	conn := &sockConn{id: uuid.New().String(), ws: ws, send: make(chan []byte, sendBuffer)}
	go s.writePump(conn)
	go s.readPump(conn)
}

func (s *socketServer) readPump(c *sockConn) {
	// The send channel is never closed: a publish may still hold a reference
	// to this conn after LeaveAll. writePump exits on its next failed write.
	defer func() {
		s.reg.LeaveAll(c)
		_ = c.ws.Close()
		s.log.Info("socket closed", "conn", c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("socket read", "conn", c.id, "err", err)
			}
			return
		}
		s.handleMessage(c, data)
	}
}

func (s *socketServer) handleMessage(c *sockConn, data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("invalid socket message", "conn", c.id, "err", err)
		return
	}
	switch msg.Type {
	case "register-user":
		var reg registerPayload
		if err := json.Unmarshal(msg.Data, &reg); err != nil || reg.AccountID == "" {
			s.log.Warn("invalid registration", "conn", c.id)
			return
		}
		for _, room := range RoomsForRegistration(reg.AccountID, reg.Role) {
			s.reg.Join(c, room)
		}
		s.log.Info("socket registered", "conn", c.id, "account", reg.AccountID, "role", reg.Role)
		if ack, err := json.Marshal(wsMessage{Type: "registered"}); err == nil {
			select {
			case c.send <- ack:
			default:
			}
		}
	default:
		s.log.Warn("unknown socket message", "conn", c.id, "type", msg.Type)
	}
}

func (s *socketServer) writePump(c *sockConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// POST /api/socket/emit
// The synchronous hand-off point for stateless request handlers. Success means
// the event was routed, not that any client received it.
func (s *socketServer) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event string       `json:"event"`
		Data  EventPayload `json:"data"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Event == "" {
		writeError(w, 400, "missing event")
		return
	}
	if err := s.router.Dispatch(req.Event, req.Data); err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			writeError(w, 400, "unknown event")
			return
		}
		s.log.Error("event dispatch", "event", req.Event, "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
}

func (s *socketServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/socket", s.handleSocket)
	mux.HandleFunc("POST /api/socket/emit", s.handleEmit)
}
