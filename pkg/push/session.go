package push

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame or control write.
	writeWait = 10 * time.Second

	// pongWait is how long a session may go silent before the read side
	// gives up on it.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames. The channel is push-only; clients
	// have nothing meaningful to send.
	maxMessageSize = 512

	sendBacklog = 32
)

// session is one websocket connection bound to a username.
type session struct {
	hub      *Hub
	conn     *websocket.Conn
	username string // original case from the token
	key      string // lowercased routing key
	send     chan Frame
}

// readPump drains and discards inbound frames, keeping the connection's read
// deadline fresh via pongs. It is the goroutine that notices a dead peer.
func (s *session) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("push session read error", "username", s.username, "error", err)
			}
			return
		}
	}
}

// writePump serializes frames from the hub onto the connection and keeps the
// peer alive with pings. A closed send channel means the hub dropped us.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
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
