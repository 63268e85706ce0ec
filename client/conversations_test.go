package client

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instaclone/models"
)

// fakeChannel drives the reconciler without a network. Subscriptions are
// backed by a detached Channel so dispatch and scoped teardown behave exactly
// as they do in production.
type fakeChannel struct {
	dummy *Channel

	mu       sync.Mutex
	sent     []models.Message
	loads    []models.LoadPayload
	failSend bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		dummy: &Channel{
			subs: make(map[string][]*Subscription),
			done: make(chan struct{}),
		},
	}
}

func (f *fakeChannel) Send(senderID, recipientID int64, text string) (models.Message, error) {
	msg := models.Message{
		ClientID:       uuid.NewString(),
		ConversationID: models.ConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        text,
		Timestamp:      time.Now().UnixMilli(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return msg, ErrNotConnected
	}
	f.sent = append(f.sent, msg)
	return msg, nil
}

func (f *fakeChannel) LoadHistory(senderID, recipientID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, models.LoadPayload{SenderID: senderID, RecipientID: recipientID})
	return nil
}

func (f *fakeChannel) Subscribe(kind string) *Subscription {
	return f.dummy.Subscribe(kind)
}

// write satisfies the resend path, preserving the original client id
func (f *fakeChannel) write(kind string, payload interface{}) error {
	msg, ok := payload.(models.Message)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return ErrNotConnected
	}
	f.sent = append(f.sent, msg)
	return nil
}

// emit pushes an event through the dummy channel's dispatcher, exercising the
// same path real inbound frames take
func (f *fakeChannel) emit(t *testing.T, kind string, payload interface{}) {
	t.Helper()
	ev, err := models.NewEvent(kind, payload)
	require.NoError(t, err)
	f.dummy.dispatch(ev)
}

func serverMsg(id int64, sender, recipient int64, content string, ts int64) models.Message {
	return models.Message{
		ID:             id,
		ClientID:       uuid.NewString(),
		ConversationID: models.ConversationID(sender, recipient),
		SenderID:       sender,
		RecipientID:    recipient,
		Content:        content,
		Timestamp:      ts,
	}
}

func TestLoadedReplacesThreadAscending(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)
	require.NoError(t, c.Select(2))
	assert.True(t, c.Loading())

	// Store contract: newest first
	rows := []models.Message{
		serverMsg(3, 2, 1, "third", 300),
		serverMsg(2, 1, 2, "second", 200),
		serverMsg(1, 1, 2, "first", 100),
	}
	c.Loaded(rows)

	thread := c.Thread()
	require.Len(t, thread, 3)
	assert.Equal(t, "first", thread[0].Content)
	assert.Equal(t, "second", thread[1].Content)
	assert.Equal(t, "third", thread[2].Content)
	assert.False(t, c.Loading())

	c.Close()
}

func TestLoadedKeepsPendingOptimisticSends(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)
	require.NoError(t, c.Select(2))

	// Optimistic send during the load gap
	tm, err := c.SendText("in flight")
	require.NoError(t, err)

	c.Loaded([]models.Message{serverMsg(1, 2, 1, "old", 100)})

	thread := c.Thread()
	require.Len(t, thread, 2)
	assert.Equal(t, "old", thread[0].Content)
	assert.Equal(t, "in flight", thread[1].Content)
	assert.True(t, thread[1].Pending)
	assert.Equal(t, tm.ClientID, thread[1].ClientID)

	c.Close()
}

func TestPeerSwitchStopsCrossTalk(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)

	require.NoError(t, c.Select(2))
	c.Loaded(nil)

	// Switch to peer 3, then a late message for the 1-2 conversation arrives
	require.NoError(t, c.Select(3))
	c.Loaded(nil)

	fc.emit(t, models.EventMessageReceive, serverMsg(9, 2, 1, "late for peer 2", 900))

	// Give the pump a moment, then assert it never reached the open thread
	assert.Eventually(t, func() bool {
		list := c.List()
		for _, s := range list {
			if s.User.ID == 2 && s.Unread == 1 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "message should land in peer 2's summary as unread")

	for _, tm := range c.Thread() {
		assert.NotEqual(t, "late for peer 2", tm.Content, "old peer's message leaked into the new thread")
	}

	c.Close()
}

func TestLoadedForPreviousPeerIsFiltered(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)
	require.NoError(t, c.Select(3))

	// A stale history reply for the 1-2 conversation must not populate 1-3
	c.Loaded([]models.Message{serverMsg(1, 2, 1, "stale", 100)})
	assert.Empty(t, c.Thread())

	c.Close()
}

func TestAckResolvesPendingByClientID(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)
	require.NoError(t, c.Select(2))
	c.Loaded(nil)

	tm, err := c.SendText("hello")
	require.NoError(t, err)
	require.True(t, tm.Pending)

	// Server echo carries the client id plus canonical id and timestamp
	ack := models.Message{
		ID:             77,
		ClientID:       tm.ClientID,
		ConversationID: tm.ConversationID,
		SenderID:       1,
		RecipientID:    2,
		Content:        "hello",
		Timestamp:      tm.Timestamp + 5,
	}
	c.Acked(ack)

	thread := c.Thread()
	require.Len(t, thread, 1, "ack must replace the optimistic message, not duplicate it")
	assert.False(t, thread[0].Pending)
	assert.Equal(t, int64(77), thread[0].ID)
	assert.Equal(t, ack.Timestamp, thread[0].Timestamp)

	c.Close()
}

func TestSendWhileDisconnectedKeepsFailedMessage(t *testing.T) {
	fc := newFakeChannel()
	fc.failSend = true
	c := NewConversations(1, fc)
	require.NoError(t, c.Select(2))
	c.Loaded(nil)

	tm, err := c.SendText("try me")
	assert.ErrorIs(t, err, ErrNotConnected)

	thread := c.Thread()
	require.Len(t, thread, 1)
	assert.True(t, thread[0].Failed, "failed send must stay visible for retry")

	// Reconnect and retry with the same client id
	fc.mu.Lock()
	fc.failSend = false
	fc.mu.Unlock()

	require.NoError(t, c.Retry(tm.ClientID))

	thread = c.Thread()
	require.Len(t, thread, 1)
	assert.False(t, thread[0].Failed)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	require.Len(t, fc.sent, 1)
	assert.Equal(t, tm.ClientID, fc.sent[0].ClientID, "retry must reuse the original client id")
}

func TestSendWithoutChannelFailsCleanly(t *testing.T) {
	c := NewConversations(1, nil)

	// Sending without a channel must error, never panic
	assert.NotPanics(t, func() {
		_, err := c.SendText("hello")
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	c.mu.Lock()
	c.thread = append(c.thread, ThreadMessage{
		Message: models.Message{ClientID: "abc", SenderID: 1, RecipientID: 2},
		Failed:  true,
	})
	c.mu.Unlock()

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, c.Retry("abc"), ErrNotConnected)
	})
}

func TestSummaryListSortsByEpochDescending(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)

	users := []models.UserResponse{
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "carol"},
		{ID: 4, Username: "dave"},
	}
	c.SeedDirectory(users)

	list := c.List()
	require.Len(t, list, 3)
	for _, s := range list {
		assert.Equal(t, "No messages yet", s.LastMessage)
	}

	// Messages arrive out of alphabetical order; epoch decides
	c.Receive(serverMsg(1, 3, 1, "from carol", 200))
	c.Receive(serverMsg(2, 4, 1, "from dave", 100))

	list = c.List()
	assert.Equal(t, int64(3), list[0].User.ID)
	assert.Equal(t, int64(4), list[1].User.ID)
	assert.Equal(t, int64(2), list[2].User.ID)
	assert.Equal(t, "from carol", list[0].LastMessage)
}

func TestSeedSummariesUsesServerData(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)

	last := serverMsg(5, 2, 1, "latest", 500)
	c.SeedSummaries([]models.Conversation{
		{User: models.UserResponse{ID: 2, Username: "bob"}, LastMessage: &last, UnreadCount: 3},
	})
	c.SeedDirectory([]models.UserResponse{
		{ID: 2, Username: "bob"}, // already summarized, must not reset
		{ID: 3, Username: "carol"},
	})

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].User.ID)
	assert.Equal(t, "latest", list[0].LastMessage)
	assert.Equal(t, 3, list[0].Unread)
	assert.Equal(t, "No messages yet", list[1].LastMessage)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	fc := newFakeChannel()
	c := NewConversations(1, fc)
	c.SeedDirectory([]models.UserResponse{{ID: 2, Username: "bob"}, {ID: 3, Username: "carol"}})
	require.NoError(t, c.Select(2))
	c.Loaded(nil)

	// Inbound for the open conversation: no unread
	c.Receive(serverMsg(1, 2, 1, "hi", 100))
	// Inbound for a background conversation: unread
	c.Receive(serverMsg(2, 3, 1, "psst", 200))
	c.Receive(serverMsg(3, 3, 1, "psst again", 300))

	var bob, carol Summary
	for _, s := range c.List() {
		switch s.User.ID {
		case 2:
			bob = s
		case 3:
			carol = s
		}
	}
	assert.Equal(t, 0, bob.Unread)
	assert.Equal(t, 2, carol.Unread)

	c.MarkRead(3)
	for _, s := range c.List() {
		if s.User.ID == 3 {
			assert.Equal(t, 0, s.Unread)
		}
	}

	c.Close()
}
