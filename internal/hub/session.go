package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

const (
	// sendBuffer bounds the per-session event queue. A client that falls
	// further behind than this starts missing events until it reconnects
	// and re-fetches.
	sendBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

// Session is one authenticated websocket connection.
type Session struct {
	ID   string
	User schema.UserRef

	conn *websocket.Conn
	send chan schema.Event
	once sync.Once
}

// NewSession creates a session for an authenticated user. conn may be
// nil in tests; Serve requires a real connection.
func NewSession(user schema.UserRef, conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.NewString(),
		User: user,
		conn: conn,
		send: make(chan schema.Event, sendBuffer),
	}
}

// Events exposes the session's outbound queue for consumers that drain
// it themselves instead of through Serve.
func (s *Session) Events() <-chan schema.Event {
	return s.send
}

// close releases the send channel. Only the hub calls this, under its
// write lock, so no Broadcast can race the close.
func (s *Session) close() {
	s.once.Do(func() {
		close(s.send)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// Serve pumps events to the peer until the connection drops, then
// deregisters the session. It blocks for the lifetime of the connection.
func (s *Session) Serve(h *Hub) {
	go s.readPump(h)
	s.writePump()
}

// writePump drains the send queue onto the wire and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; clients only listen. Its job is to
// notice the peer going away and deregister the session.
func (s *Session) readPump(h *Hub) {
	defer h.Deregister(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
