package client

import (
	"encoding/json"
	"sort"
	"sync"

	"instaclone/models"
)

// placeholderLastMessage is shown for directory peers with no history yet
const placeholderLastMessage = "No messages yet"

// sender is the subset of Channel the reconciler drives
type sender interface {
	Send(senderID, recipientID int64, text string) (models.Message, error)
	LoadHistory(senderID, recipientID int64) error
	Subscribe(kind string) *Subscription
}

// ThreadMessage is a message as the open conversation sees it. Pending marks
// an optimistic send that has not been acked; Failed marks one whose send
// errored and is waiting for a retry.
type ThreadMessage struct {
	models.Message
	Pending bool
	Failed  bool
}

// Summary is one row of the conversation list
type Summary struct {
	User            models.UserResponse
	LastMessage     string
	LastMessageTime int64 // epoch millis of the last message, 0 for none
	Unread          int
	Online          bool
}

// Conversations reconciles the conversation list and the open thread across
// three inputs: HTTP-seeded summaries/directory, optimistic local sends, and
// asynchronous channel events. All methods are safe for concurrent use.
type Conversations struct {
	selfID int64
	ch     sender

	mu       sync.Mutex
	list     []Summary
	byPeer   map[int64]int // peer id -> index into list
	selected int64
	thread   []ThreadMessage
	loading  bool
	subs     []*Subscription
	wg       sync.WaitGroup
}

// NewConversations creates the reconciler for the logged-in user. ch may be
// nil when the caller pumps events in manually; sending then reports
// ErrNotConnected.
func NewConversations(selfID int64, ch sender) *Conversations {
	return &Conversations{
		selfID: selfID,
		ch:     ch,
		byPeer: make(map[int64]int),
	}
}

// SeedSummaries loads server-computed conversation summaries
func (c *Conversations) SeedSummaries(convs []models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range convs {
		s := Summary{
			User:        conv.User,
			LastMessage: placeholderLastMessage,
			Unread:      conv.UnreadCount,
			Online:      conv.User.Online,
		}
		if conv.LastMessage != nil {
			s.LastMessage = conv.LastMessage.Content
			s.LastMessageTime = conv.LastMessage.Timestamp
		}
		c.upsertLocked(s)
	}
	c.resortLocked()
}

// SeedDirectory adds directory users that have no conversation yet, so every
// known peer is reachable from the list
func (c *Conversations) SeedDirectory(users []models.UserResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		if u.ID == c.selfID {
			continue
		}
		if _, ok := c.byPeer[u.ID]; ok {
			continue
		}
		c.upsertLocked(Summary{
			User:        u,
			LastMessage: placeholderLastMessage,
			Online:      u.Online,
		})
	}
	c.resortLocked()
}

func (c *Conversations) upsertLocked(s Summary) {
	if i, ok := c.byPeer[s.User.ID]; ok {
		c.list[i] = s
		return
	}
	c.byPeer[s.User.ID] = len(c.list)
	c.list = append(c.list, s)
}

// resortLocked orders the list newest conversation first by the canonical
// epoch timestamp. Peers without history sort last, by username.
func (c *Conversations) resortLocked() {
	sort.SliceStable(c.list, func(i, j int) bool {
		a, b := c.list[i], c.list[j]
		if a.LastMessageTime != b.LastMessageTime {
			return a.LastMessageTime > b.LastMessageTime
		}
		return a.User.Username < b.User.Username
	})
	for i := range c.list {
		c.byPeer[c.list[i].User.ID] = i
	}
}

// Select opens the conversation with the given peer. The previous peer's
// subscriptions are closed before the new ones are wired, so a late event for
// the old peer can never land in the new thread. History is requested over
// the channel; the thread shows a loading state until messages:loaded.
func (c *Conversations) Select(peerID int64) error {
	c.teardown()

	c.mu.Lock()
	c.selected = peerID
	c.thread = nil
	c.loading = true
	c.mu.Unlock()

	if c.ch == nil {
		return nil
	}

	for _, kind := range []string{models.EventMessagesLoaded, models.EventMessageReceive, models.EventMessageSent} {
		sub := c.ch.Subscribe(kind)
		c.mu.Lock()
		c.subs = append(c.subs, sub)
		c.mu.Unlock()

		c.wg.Add(1)
		go c.pump(kind, sub)
	}

	if err := c.ch.LoadHistory(c.selfID, peerID); err != nil {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// teardown closes the current peer's subscriptions and waits for their pumps
// to stop delivering
func (c *Conversations) teardown() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	c.wg.Wait()
}

func (c *Conversations) pump(kind string, sub *Subscription) {
	defer c.wg.Done()
	for ev := range sub.C {
		switch kind {
		case models.EventMessagesLoaded:
			var msgs []models.Message
			if err := json.Unmarshal(ev.Payload, &msgs); err == nil {
				c.Loaded(msgs)
			}
		case models.EventMessageReceive:
			var msg models.Message
			if err := json.Unmarshal(ev.Payload, &msg); err == nil {
				c.Receive(msg)
			}
		case models.EventMessageSent:
			var msg models.Message
			if err := json.Unmarshal(ev.Payload, &msg); err == nil {
				c.Acked(msg)
			}
		}
	}
}

// SendText optimistically appends a message to the open thread and emits it
// on the channel. On a send error the message is kept, marked Failed, and the
// error is returned so the caller can surface a retryable failure state.
// Without a channel it reports ErrNotConnected instead.
func (c *Conversations) SendText(text string) (ThreadMessage, error) {
	if c.ch == nil {
		return ThreadMessage{}, ErrNotConnected
	}

	c.mu.Lock()
	peerID := c.selected
	c.mu.Unlock()

	msg, err := c.ch.Send(c.selfID, peerID, text)
	tm := ThreadMessage{Message: msg, Pending: true, Failed: err != nil}

	c.mu.Lock()
	c.thread = append(c.thread, tm)
	c.touchLocked(peerID, msg.Content, msg.Timestamp, false)
	c.mu.Unlock()

	return tm, err
}

// Retry re-sends a failed optimistic message, keeping its client id so the
// server-side uniqueness constraint absorbs an accidental double delivery
func (c *Conversations) Retry(clientID string) error {
	c.mu.Lock()
	var target *ThreadMessage
	for i := range c.thread {
		if c.thread[i].ClientID == clientID && c.thread[i].Failed {
			target = &c.thread[i]
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return nil
	}
	msg := target.Message
	c.mu.Unlock()

	err := c.resend(msg)

	c.mu.Lock()
	for i := range c.thread {
		if c.thread[i].ClientID == clientID {
			c.thread[i].Failed = err != nil
			break
		}
	}
	c.mu.Unlock()
	return err
}

func (c *Conversations) resend(msg models.Message) error {
	if c.ch == nil {
		return ErrNotConnected
	}
	type writer interface {
		write(kind string, payload interface{}) error
	}
	if w, ok := c.ch.(writer); ok {
		return w.write(models.EventMessageSend, msg)
	}
	_, err := c.ch.Send(msg.SenderID, msg.RecipientID, msg.Content)
	return err
}

// Loaded replaces the open thread with the server history. The store returns
// newest first; the thread displays ascending, so the rows are reversed here.
// Optimistic messages still pending are re-applied after the swap instead of
// being lost to the replacement.
func (c *Conversations) Loaded(msgs []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	convID := models.ConversationID(c.selfID, c.selected)

	loaded := make([]ThreadMessage, 0, len(msgs))
	seen := make(map[string]bool)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ConversationID != convID {
			continue
		}
		loaded = append(loaded, ThreadMessage{Message: msgs[i]})
		if msgs[i].ClientID != "" {
			seen[msgs[i].ClientID] = true
		}
	}

	// Keep optimistic sends the server has not echoed yet
	for _, tm := range c.thread {
		if tm.Pending && !seen[tm.ClientID] {
			loaded = append(loaded, tm)
		}
	}

	c.thread = loaded
	c.sortThreadLocked()
	c.loading = false
}

// Acked resolves a pending optimistic message by its client id, adopting the
// server row's canonical id and timestamp
func (c *Conversations) Acked(msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.thread {
		if c.thread[i].ClientID == msg.ClientID {
			c.thread[i] = ThreadMessage{Message: msg}
			c.sortThreadLocked()
			c.touchLocked(c.peerOf(msg), msg.Content, msg.Timestamp, false)
			return
		}
	}

	// Ack for a message we no longer track (e.g. after a peer switch):
	// only the summary moves
	c.touchLocked(c.peerOf(msg), msg.Content, msg.Timestamp, false)
}

// Receive handles an inbound message. It is appended to the thread only when
// it belongs to the open conversation; the summary list is updated either
// way, counting unread for conversations that are not open.
func (c *Conversations) Receive(msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	peer := c.peerOf(msg)
	open := c.selected != 0 && msg.ConversationID == models.ConversationID(c.selfID, c.selected)

	if open {
		c.thread = append(c.thread, ThreadMessage{Message: msg})
		c.sortThreadLocked()
	}

	c.touchLocked(peer, msg.Content, msg.Timestamp, !open && msg.RecipientID == c.selfID)
}

// peerOf returns the other participant of a message
func (c *Conversations) peerOf(msg models.Message) int64 {
	if msg.SenderID == c.selfID {
		return msg.RecipientID
	}
	return msg.SenderID
}

// touchLocked updates a summary's last message and re-sorts the list
func (c *Conversations) touchLocked(peerID int64, content string, ts int64, unread bool) {
	i, ok := c.byPeer[peerID]
	if !ok {
		c.upsertLocked(Summary{
			User:        models.UserResponse{ID: peerID},
			LastMessage: placeholderLastMessage,
		})
		i = c.byPeer[peerID]
	}
	if ts >= c.list[i].LastMessageTime {
		c.list[i].LastMessage = content
		c.list[i].LastMessageTime = ts
	}
	if unread {
		c.list[i].Unread++
	}
	c.resortLocked()
}

// sortThreadLocked keeps the thread ascending by the canonical timestamp,
// breaking ties by server id so two rapid identical sends keep send order
func (c *Conversations) sortThreadLocked() {
	sort.SliceStable(c.thread, func(i, j int) bool {
		a, b := c.thread[i], c.thread[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ID < b.ID
	})
}

// Thread returns a copy of the open conversation, ascending by timestamp
func (c *Conversations) Thread() []ThreadMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ThreadMessage, len(c.thread))
	copy(out, c.thread)
	return out
}

// List returns a copy of the conversation list, newest first
func (c *Conversations) List() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Summary, len(c.list))
	copy(out, c.list)
	return out
}

// Loading reports whether a history load is in flight for the open thread
func (c *Conversations) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Selected returns the peer id of the open conversation, 0 for none
func (c *Conversations) Selected() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Close tears down the open conversation's subscriptions
func (c *Conversations) Close() {
	c.teardown()
}

// MarkRead clears the unread count for a peer locally; the server-side read
// receipt goes over REST
func (c *Conversations) MarkRead(peerID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.byPeer[peerID]; ok {
		c.list[i].Unread = 0
	}
}
