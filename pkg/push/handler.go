package push

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// TokenValidator resolves a handshake bearer token to the username it was
// issued to.
type TokenValidator func(token string) (string, error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from a separate origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler returns the websocket handshake endpoint. The token travels as a
// query parameter because browser websocket clients cannot set headers; it is
// validated before the upgrade, and its subject becomes the session's routing
// identity for the life of the connection.
func (h *Hub) Handler(validate TokenValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Missing token.", http.StatusUnauthorized)
			return
		}
		username, err := validate(token)
		if err != nil || username == "" {
			http.Error(w, "Invalid or expired token.", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written its own response.
			h.logger.Warn("websocket upgrade failed", "username", username, "error", err)
			return
		}

		s := &session{
			hub:      h,
			conn:     conn,
			username: username,
			key:      strings.ToLower(username),
			send:     make(chan Frame, sendBacklog),
		}
		select {
		case h.register <- s:
		case <-h.done:
			conn.Close()
			return
		}
		go s.writePump()
		go s.readPump()

		h.logger.Info("push session connected", "username", username)
	}
}
