package push

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testValidator accepts "token-<name>" and resolves it to <name>.
func testValidator(token string) (string, error) {
	if !strings.HasPrefix(token, "token-") {
		return "", errors.New("bad token")
	}
	return strings.TrimPrefix(token, "token-"), nil
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	server := httptest.NewServer(hub.Handler(testValidator))
	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
	})
	return hub, server
}

// dialSession connects a client and blocks until the hub has registered it,
// so a Publish immediately after cannot outrun the registration.
func dialSession(t *testing.T, hub *Hub, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	username := strings.TrimPrefix(token, "token-")
	before := hub.SessionCount(username)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.SessionCount(username) > before
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Inbox string         `json:"inbox"`
		Event map[string]any `json:"event"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	return Frame{Inbox: frame.Inbox, Event: frame.Event}
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	hub := NewHub(nil)
	handler := hub.Handler(testValidator)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/ws-smashrank", nil))

	assert.Equal(t, 401, rec.Code)
}

func TestHandlerRejectsInvalidToken(t *testing.T) {
	hub := NewHub(nil)
	handler := hub.Handler(testValidator)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/ws-smashrank?token=garbage", nil))

	assert.Equal(t, 401, rec.Code)
}

func TestPublishRoutesToUser(t *testing.T) {
	hub, server := newTestHub(t)

	alice := dialSession(t, hub, server, "token-alice")
	bob := dialSession(t, hub, server, "token-bob")

	hub.Publish("alice", InboxMatchUpdates, map[string]string{"status": "STARTED"})

	frame := readFrame(t, alice)
	assert.Equal(t, InboxMatchUpdates, frame.Inbox)
	event, ok := frame.Event.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "STARTED", event["status"])

	// Bob must not see Alice's event.
	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestPublishPreservesOrder(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dialSession(t, hub, server, "token-alice")

	for _, status := range []string{"STARTED", "AWAITING_CONFIRMATION", "REMATCH_OFFERED"} {
		hub.Publish("alice", InboxMatchUpdates, map[string]string{"status": status})
	}

	for _, want := range []string{"STARTED", "AWAITING_CONFIRMATION", "REMATCH_OFFERED"} {
		frame := readFrame(t, conn)
		event := frame.Event.(map[string]any)
		assert.Equal(t, want, event["status"])
	}
}

func TestPublishRoutesCaseInsensitively(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dialSession(t, hub, server, "token-Mang0")

	hub.Publish("mang0", InboxInvites, map[string]string{"from": "zain"})

	frame := readFrame(t, conn)
	assert.Equal(t, InboxInvites, frame.Inbox)
}

func TestPublishToDisconnectedUserIsNoop(t *testing.T) {
	hub, server := newTestHub(t)

	// Nobody named ghost is connected; the hub must stay healthy.
	hub.Publish("ghost", InboxInvites, map[string]string{"from": "alice"})

	conn := dialSession(t, hub, server, "token-alice")
	hub.Publish("alice", InboxInvites, map[string]string{"from": "bob"})

	frame := readFrame(t, conn)
	assert.Equal(t, InboxInvites, frame.Inbox)
}

func TestUserMayHoldMultipleSessions(t *testing.T) {
	hub, server := newTestHub(t)

	first := dialSession(t, hub, server, "token-alice")
	second := dialSession(t, hub, server, "token-alice")

	hub.Publish("alice", InboxMatchUpdates, map[string]string{"status": "STARTED"})

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		assert.Equal(t, InboxMatchUpdates, frame.Inbox)
	}
}
