package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/logger"
	"debatehub/models"
	"debatehub/structs"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type liveServer struct {
	hub      *Hub
	store    *db.MemoryStore
	server   *httptest.Server
	debateID string
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(ctx, logger.Discard())
	store := db.NewMemoryStore()
	d := &models.Debate{Title: "Spectated", Status: models.DebateStatusInProgress}
	require.NoError(t, store.InsertDebate(ctx, d))

	router := gin.New()
	router.GET("/debates/:id/live", DebateLiveHandler(hub, store, NewUpgrader(nil)))
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &liveServer{hub: hub, store: store, server: server, debateID: d.ID.Hex()}
}

func (s *liveServer) dial(t *testing.T, debateID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/debates/" + debateID + "/live"
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) structs.LiveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg structs.LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestDebateLiveHandler(t *testing.T) {
	s := newLiveServer(t)

	conn, _, err := s.dial(t, s.debateID)
	require.NoError(t, err)

	hello := readMessage(t, conn)
	assert.Equal(t, "connected", hello.Type)
	assert.Equal(t, s.debateID, hello.Content)
	assert.Equal(t, 1, s.hub.Spectators(s.debateID))

	event, err := debate.NewEvent(s.debateID, debate.EventVoteCast, debate.VotePayload{TargetKind: "argument", TargetID: "a1", Support: 1})
	require.NoError(t, err)
	require.NoError(t, s.hub.Publish(context.Background(), event))

	msg := readMessage(t, conn)
	assert.Equal(t, structs.LiveMessageEvent, msg.Type)
	forwarded, err := debate.UnmarshalEvent(string(msg.Event))
	require.NoError(t, err)
	assert.Equal(t, event.ID, forwarded.ID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.hub.Spectators(s.debateID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDebateLiveHandler_Rejects(t *testing.T) {
	s := newLiveServer(t)

	_, resp, err := s.dial(t, "not-an-id")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = s.dial(t, "65f0c0ffee00000000000001")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHub_OnlyReachesTheDebateRoom(t *testing.T) {
	s := newLiveServer(t)
	other := &models.Debate{Title: "Elsewhere"}
	require.NoError(t, s.store.InsertDebate(context.Background(), other))

	watching, _, err := s.dial(t, s.debateID)
	require.NoError(t, err)
	readMessage(t, watching)
	elsewhere, _, err := s.dial(t, other.ID.Hex())
	require.NoError(t, err)
	readMessage(t, elsewhere)

	event, err := debate.NewEvent(other.ID.Hex(), debate.EventDebateJoined, debate.ParticipantPayload{UserID: "u2"})
	require.NoError(t, err)
	s.hub.BroadcastToDebate(other.ID.Hex(), event)

	assert.Equal(t, structs.LiveMessageEvent, readMessage(t, elsewhere).Type)

	require.NoError(t, watching.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = watching.ReadMessage()
	assert.Error(t, err, "spectator of another debate received the event")
}

func TestHub_FollowStreams(t *testing.T) {
	s := newLiveServer(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	s.hub.FollowStreams(rdb)

	conn, _, err := s.dial(t, s.debateID)
	require.NoError(t, err)
	readMessage(t, conn)

	publisher := debate.NewStreamPublisher(rdb)
	event, err := debate.NewEvent(s.debateID, debate.EventArgumentSubmitted, debate.ArgumentPayload{ArgumentID: "a2", TurnNumber: 2})
	require.NoError(t, err)

	received := make(chan structs.LiveMessage, 1)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	go func() {
		var msg structs.LiveMessage
		if conn.ReadJSON(&msg) == nil {
			received <- msg
		}
	}()

	// the follower starts reading from "$", so publish until it has caught up
	var got *structs.LiveMessage
	for attempt := 0; attempt < 20 && got == nil; attempt++ {
		require.NoError(t, publisher.Publish(context.Background(), event))
		select {
		case msg := <-received:
			got = &msg
		case <-time.After(200 * time.Millisecond):
		}
	}
	require.NotNil(t, got, "no event arrived from the stream")
	assert.Equal(t, structs.LiveMessageEvent, got.Type)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list", nil, "https://evil.example", true},
		{"no origin header", []string{"https://debates.example.com"}, "", true},
		{"listed", []string{"https://debates.example.com"}, "https://debates.example.com", true},
		{"unlisted", []string{"https://debates.example.com"}, "https://evil.example", false},
		{"wildcard", []string{"*"}, "https://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/debates/x/live", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, NewUpgrader(tt.allowed).CheckOrigin(r))
		})
	}
}

// stalledRoom upgrades every request into a spectator of debateID with a short write
// deadline and hands the server-side client back to the test.
func stalledRoom(t *testing.T, hub *Hub, debateID string, wait time.Duration) (*Client, *websocket.Conn) {
	t.Helper()
	clients := make(chan *Client, 1)
	upgrader := NewUpgrader(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &Client{Conn: conn, DebateID: debateID, WriteWait: wait}
		hub.Register(client)
		clients <- client
	}))
	t.Cleanup(server.Close)

	// the dialing side never reads, so the server's send buffer eventually fills
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case client := <-clients:
		return client, conn
	case <-time.After(2 * time.Second):
		t.Fatal("spectator was not registered")
		return nil, nil
	}
}

func TestHub_BroadcastToDebate_StalledSpectator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx, logger.Discard())
	defer hub.Close()

	stalledRoom(t, hub, "d1", 100*time.Millisecond)
	require.Equal(t, 1, hub.Spectators("d1"))

	event, err := debate.NewEvent("d1", debate.EventArgumentSubmitted, map[string]string{"content": strings.Repeat("x", 1<<20)})
	require.NoError(t, err)

	for attempt := 0; attempt < 64 && hub.Spectators("d1") > 0; attempt++ {
		start := time.Now()
		hub.BroadcastToDebate("d1", event)
		require.Less(t, time.Since(start), 2*time.Second, "broadcast blocked on a spectator that does not read")
	}
	assert.Equal(t, 0, hub.Spectators("d1"), "stalled spectator was never dropped")
}

func TestClient_SafeWriteJSON_ClosedConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx, logger.Discard())
	defer hub.Close()

	client, _ := stalledRoom(t, hub, "d1", time.Second)
	require.NoError(t, client.Conn.Close())

	assert.Error(t, client.SafeWriteJSON(structs.LiveMessage{Type: "connected", Content: "d1"}))
}
