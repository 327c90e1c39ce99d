// Package push delivers lifecycle events to connected players over
// persistent websocket sessions. The routing identity of a session is fixed
// at handshake time from a bearer token; after that the hub addresses frames
// by username. Delivery is fire-and-forget and in-order per session: there is
// no acknowledgment and no durable queue, so a disconnected client misses
// events and resyncs over REST on reconnect.
package push

import (
	"log/slog"
	"strings"
)

// The two logical per-user inboxes multiplexed over one socket.
const (
	InboxInvites      = "invites"
	InboxMatchUpdates = "match-updates"
)

const publishBacklog = 256

// Frame is the wire shape of one pushed event: the logical inbox it belongs
// to plus the event payload.
type Frame struct {
	Inbox string `json:"inbox"`
	Event any    `json:"event"`
}

// publication is an addressed frame waiting for the hub loop.
type publication struct {
	username string // lowercased routing key
	frame    Frame
}

// countQuery asks the Run loop how many sessions a user holds.
type countQuery struct {
	username string
	reply    chan int
}

// Hub routes addressed frames to every session a user holds. All session
// table access happens on the Run goroutine; handlers and publishers talk to
// it over channels.
type Hub struct {
	logger *slog.Logger

	register   chan *session
	unregister chan *session
	publish    chan publication
	counts     chan countQuery
	done       chan struct{}

	// sessions is owned by Run. Keyed by lowercased username.
	sessions map[string]map[*session]bool
}

// NewHub returns a hub ready for Run.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *session),
		unregister: make(chan *session),
		publish:    make(chan publication, publishBacklog),
		counts:     make(chan countQuery),
		done:       make(chan struct{}),
		sessions:   make(map[string]map[*session]bool),
	}
}

// Run owns the session table until Shutdown. Start it exactly once.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, set := range h.sessions {
				for s := range set {
					close(s.send)
				}
			}
			h.sessions = make(map[string]map[*session]bool)
			return

		case s := <-h.register:
			set := h.sessions[s.key]
			if set == nil {
				set = make(map[*session]bool)
				h.sessions[s.key] = set
			}
			set[s] = true

		case s := <-h.unregister:
			h.drop(s)

		case p := <-h.publish:
			for s := range h.sessions[p.username] {
				select {
				case s.send <- p.frame:
				default:
					// Slow consumer: cut it loose rather than stall the hub.
					h.logger.Warn("push session send buffer full, dropping session",
						"username", s.username)
					h.drop(s)
				}
			}

		case q := <-h.counts:
			q.reply <- len(h.sessions[q.username])
		}
	}
}

// drop removes a session and closes its send channel. Only called from Run;
// the membership check makes unregister-after-drop a no-op.
func (h *Hub) drop(s *session) {
	set, ok := h.sessions[s.key]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.send)
	if len(set) == 0 {
		delete(h.sessions, s.key)
	}
}

// Publish queues one event for every open session the user has. Usernames
// route case-insensitively. Publishing to a user with no sessions is a no-op.
func (h *Hub) Publish(username, inbox string, event any) {
	p := publication{
		username: strings.ToLower(username),
		frame:    Frame{Inbox: inbox, Event: event},
	}
	select {
	case h.publish <- p:
	case <-h.done:
	}
}

// SessionCount reports how many open sessions a user holds right now. The
// query round-trips the Run loop, so it doubles as a barrier: everything
// queued before the call has been processed when it returns.
func (h *Hub) SessionCount(username string) int {
	q := countQuery{username: strings.ToLower(username), reply: make(chan int, 1)}
	select {
	case h.counts <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}

// Shutdown stops the Run loop and closes every open session.
func (h *Hub) Shutdown() {
	close(h.done)
}
