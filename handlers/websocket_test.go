package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instaclone/models"
)

// memStore is an in-memory MessageStore honoring the persistence contract:
// server-assigned strictly increasing timestamps, redundant conversation id,
// no content dedup, newest-first reads.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	nextTS int64
	rows   []models.Message
}

func newMemStore() *memStore {
	return &memStore{nextTS: 1000}
}

func (s *memStore) CreateMessage(clientID string, senderID, recipientID int64, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.nextTS++
	msg := models.Message{
		ID:             s.nextID,
		ClientID:       clientID,
		ConversationID: models.ConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Timestamp:      s.nextTS,
	}
	s.rows = append(s.rows, msg)
	return &msg, nil
}

func (s *memStore) GetMessagesBetweenUsers(userID1, userID2 int64, limit, offset int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID := models.ConversationID(userID1, userID2)

	var out []models.Message
	for _, m := range s.rows {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type hubHarness struct {
	hub   *Hub
	store *memStore
	srv   *httptest.Server
}

func newHubHarness(t *testing.T) *hubHarness {
	t.Helper()
	store := newMemStore()
	hub := NewHub(store)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	return &hubHarness{hub: hub, store: store, srv: srv}
}

// join dials the channel endpoint and announces the given user
func (h *hubHarness) join(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sendEvent(t, conn, models.EventUserJoin, models.JoinPayload{UserID: userID})

	require.Eventually(t, func() bool {
		return h.hub.IsUserOnline(userID)
	}, 2*time.Second, 5*time.Millisecond, "user %d never registered", userID)

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, kind string, payload interface{}) {
	t.Helper()
	ev, err := models.NewEvent(kind, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ev))
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func decodeMessage(t *testing.T, payload json.RawMessage) models.Message {
	t.Helper()
	var msg models.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestRelayDeliversToRecipientAndAcksSender(t *testing.T) {
	h := newHubHarness(t)

	alice := h.join(t, 1)
	bob := h.join(t, 2)

	sendEvent(t, alice, models.EventMessageSend, models.Message{
		ClientID:    "c-1",
		SenderID:    1,
		RecipientID: 2,
		Content:     "hello",
	})

	// Bob receives the relayed message with the canonical conversation id
	ev := readEvent(t, bob)
	require.Equal(t, models.EventMessageReceive, ev.Type)
	got := decodeMessage(t, ev.Payload)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "1_2", got.ConversationID)
	assert.Equal(t, int64(1), got.SenderID)
	assert.Equal(t, int64(2), got.RecipientID)
	assert.NotZero(t, got.Timestamp, "server must assign the timestamp")

	// Alice gets the ack carrying her client id and the server row
	ev = readEvent(t, alice)
	require.Equal(t, models.EventMessageSent, ev.Type)
	ack := decodeMessage(t, ev.Payload)
	assert.Equal(t, "c-1", ack.ClientID)
	assert.Equal(t, got.ID, ack.ID)
}

func TestHistoryLoadReturnsNewestFirst(t *testing.T) {
	h := newHubHarness(t)

	alice := h.join(t, 1)

	for _, content := range []string{"one", "two", "three"} {
		_, err := h.store.CreateMessage("c-"+content, 1, 2, content)
		require.NoError(t, err)
	}

	sendEvent(t, alice, models.EventMessagesLoad, models.LoadPayload{SenderID: 1, RecipientID: 2})

	ev := readEvent(t, alice)
	require.Equal(t, models.EventMessagesLoaded, ev.Type)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "three", msgs[0].Content, "store contract is newest first")
	assert.Equal(t, "one", msgs[2].Content)
}

func TestRapidIdenticalSendsPersistAsDistinctRows(t *testing.T) {
	h := newHubHarness(t)

	alice := h.join(t, 1)
	bob := h.join(t, 2)

	sendEvent(t, alice, models.EventMessageSend, models.Message{
		ClientID: "dup-1", SenderID: 1, RecipientID: 2, Content: "same",
	})
	sendEvent(t, alice, models.EventMessageSend, models.Message{
		ClientID: "dup-2", SenderID: 1, RecipientID: 2, Content: "same",
	})

	first := decodeMessage(t, readEvent(t, bob).Payload)
	second := decodeMessage(t, readEvent(t, bob).Payload)

	assert.Equal(t, "same", first.Content)
	assert.Equal(t, "same", second.Content)
	assert.NotEqual(t, first.ID, second.ID, "identical content must not be deduplicated")
	assert.Less(t, first.Timestamp, second.Timestamp, "delivery must preserve send order")
}

func TestSendRejectedForWrongSender(t *testing.T) {
	h := newHubHarness(t)

	alice := h.join(t, 1)
	h.join(t, 2)

	// Alice tries to forge a message from user 3
	sendEvent(t, alice, models.EventMessageSend, models.Message{
		ClientID: "forged", SenderID: 3, RecipientID: 2, Content: "spoof",
	})

	ev := readEvent(t, alice)
	require.Equal(t, models.EventError, ev.Type)

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	assert.Empty(t, h.store.rows, "forged message must not be persisted")
}

func TestSendBeforeJoinIsIgnored(t *testing.T) {
	h := newHubHarness(t)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	sendEvent(t, conn, models.EventMessageSend, models.Message{
		ClientID: "early", SenderID: 1, RecipientID: 2, Content: "too soon",
	})

	// Give the server a moment, then verify nothing was stored
	time.Sleep(50 * time.Millisecond)
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	assert.Empty(t, h.store.rows)
}

func TestPreJoinDisconnectDoesNotLeakGoroutines(t *testing.T) {
	h := newHubHarness(t)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")

	base := runtime.NumGoroutine()

	// Connections that drop before ever joining must still tear down both
	// pumps; they never reach the hub's unregister path
	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		conn.Close()
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base+2
	}, 3*time.Second, 10*time.Millisecond,
		"abandoned pre-join connections leaked goroutines: base %d, now %d",
		base, runtime.NumGoroutine())
}

func TestLoadRejectedForNonParticipant(t *testing.T) {
	h := newHubHarness(t)

	alice := h.join(t, 1)

	_, err := h.store.CreateMessage("c-x", 2, 3, "private")
	require.NoError(t, err)

	sendEvent(t, alice, models.EventMessagesLoad, models.LoadPayload{SenderID: 2, RecipientID: 3})

	ev := readEvent(t, alice)
	assert.Equal(t, models.EventError, ev.Type)
}

func TestOfflineRecipientDoesNotBlockSender(t *testing.T) {
	h := newHubHarness(t)

	alice := h.join(t, 1)

	sendEvent(t, alice, models.EventMessageSend, models.Message{
		ClientID: "c-off", SenderID: 1, RecipientID: 2, Content: "for later",
	})

	// The sender still gets the ack; the row is persisted for a later load
	ev := readEvent(t, alice)
	require.Equal(t, models.EventMessageSent, ev.Type)

	rows, err := h.store.GetMessagesBetweenUsers(1, 2, 50, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "for later", rows[0].Content)
}
