package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/presence/domain"
)

func newRunningHub(t *testing.T) (*Hub, presence.Tracker, *httptest.Server) {
	t.Helper()

	tracker := presence.NewTracker(presence.TrackerConfig{})
	h := New(tracker)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Stop)

	return h, tracker, serveHub(t, h)
}

func dial(t *testing.T, ts *httptest.Server, room string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRoster(t *testing.T, conn *websocket.Conn) rosterMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg rosterMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, msgRoster, msg.Type)
	return msg
}

func join(t *testing.T, conn *websocket.Conn, id, name string) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(clientMessage{
		Type:         msgJoin,
		Collaborator: &domain.Collaborator{ID: id, Name: name, Color: "#f5a623"},
	}))
}

func TestNewClientIsGreetedWithCurrentRoster(t *testing.T) {
	_, _, ts := newRunningHub(t)
	conn := dial(t, ts, "main")

	greeting := readRoster(t, conn)
	require.Equal(t, "main", greeting.Room)
	require.Empty(t, greeting.Collaborators)
}

func TestJoinBroadcastsRoster(t *testing.T) {
	_, _, ts := newRunningHub(t)
	conn := dial(t, ts, "main")
	readRoster(t, conn) // greeting

	join(t, conn, "user-1", "Dana")

	roster := readRoster(t, conn)
	require.Equal(t, "main", roster.Room)
	require.Len(t, roster.Collaborators, 1)
	require.Equal(t, "user-1", roster.Collaborators[0].ID)
	require.Equal(t, "Dana", roster.Collaborators[0].Name)
}

func TestCursorUpdatesFlowToOtherClients(t *testing.T) {
	_, _, ts := newRunningHub(t)
	alice := dial(t, ts, "pair")
	bob := dial(t, ts, "pair")
	readRoster(t, alice)
	readRoster(t, bob)

	join(t, alice, "user-a", "Alice")
	readRoster(t, alice)
	readRoster(t, bob)

	require.NoError(t, alice.WriteJSON(clientMessage{
		Type:   msgCursor,
		Cursor: &domain.CursorPosition{Line: 3, Column: 7},
	}))

	roster := readRoster(t, bob)
	require.Len(t, roster.Collaborators, 1)
	require.NotNil(t, roster.Collaborators[0].Cursor)
	require.Equal(t, 3, roster.Collaborators[0].Cursor.Line)
	require.Equal(t, 7, roster.Collaborators[0].Cursor.Column)
}

func TestDisconnectWithdrawsCollaborator(t *testing.T) {
	_, tracker, ts := newRunningHub(t)
	alice := dial(t, ts, "pair")
	bob := dial(t, ts, "pair")
	readRoster(t, alice)
	readRoster(t, bob)

	join(t, alice, "user-a", "Alice")
	readRoster(t, alice)
	readRoster(t, bob)

	require.NoError(t, alice.Close())

	roster := readRoster(t, bob)
	require.Empty(t, roster.Collaborators)
	require.Empty(t, tracker.Roster("pair"))
}

func TestRoomsAreIsolated(t *testing.T) {
	_, _, ts := newRunningHub(t)
	a := dial(t, ts, "room-a")
	b := dial(t, ts, "room-b")
	readRoster(t, a)
	readRoster(t, b)

	join(t, a, "user-a", "Alice")
	readRoster(t, a)

	// room-b stays silent about room-a; the next message b sees is its
	// own join.
	join(t, b, "user-b", "Bea")
	roster := readRoster(t, b)
	require.Equal(t, "room-b", roster.Room)
	require.Len(t, roster.Collaborators, 1)
	require.Equal(t, "user-b", roster.Collaborators[0].ID)
}

func TestCursorBeforeJoinIsIgnored(t *testing.T) {
	_, tracker, ts := newRunningHub(t)
	conn := dial(t, ts, "main")
	readRoster(t, conn)

	require.NoError(t, conn.WriteJSON(clientMessage{
		Type:   msgCursor,
		Cursor: &domain.CursorPosition{Line: 1, Column: 1},
	}))

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, tracker.Roster("main"))
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	_, _, ts := newRunningHub(t)
	conn := dial(t, ts, "main")
	readRoster(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	join(t, conn, "user-1", "Dana")
	roster := readRoster(t, conn)
	require.Len(t, roster.Collaborators, 1)
}

func TestLeaveMessageWithdrawsWithoutDisconnect(t *testing.T) {
	_, tracker, ts := newRunningHub(t)
	conn := dial(t, ts, "main")
	readRoster(t, conn)

	join(t, conn, "user-1", "Dana")
	readRoster(t, conn)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgLeave}))

	roster := readRoster(t, conn)
	require.Empty(t, roster.Collaborators)
	require.Empty(t, tracker.Roster("main"))

	// The connection is still usable for a fresh join.
	join(t, conn, "user-1", "Dana")
	roster = readRoster(t, conn)
	require.Len(t, roster.Collaborators, 1)
}

func TestServeWSBeforeStart(t *testing.T) {
	tracker := presence.NewTracker(presence.TrackerConfig{})
	h := New(tracker)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.ServeWS)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStopHangsUpClients(t *testing.T) {
	h, _, ts := newRunningHub(t)
	conn := dial(t, ts, "main")
	readRoster(t, conn)

	h.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server should close the connection on Stop")
}

func TestAnnounceFileReachesEveryRoom(t *testing.T) {
	h, _, ts := newRunningHub(t)
	a := dial(t, ts, "room-a")
	b := dial(t, ts, "room-b")
	readRoster(t, a)
	readRoster(t, b)

	h.AnnounceFile("src/main.go", "write")

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg fileMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, msgFile, msg.Type)
		require.Equal(t, "src/main.go", msg.Path)
		require.Equal(t, "write", msg.Op)
	}
}

func TestAnnounceFileBeforeStartIsDropped(t *testing.T) {
	tracker := presence.NewTracker(presence.TrackerConfig{})
	h := New(tracker)

	// Must not block with no broadcast loop running.
	h.AnnounceFile("src/main.go", "write")
}
