// Package client is the embeddable messaging client: a long-lived,
// auto-reconnecting realtime channel plus the conversation state that tracks
// optimistic sends, server acks and inbound messages.
package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"instaclone/models"
)

var (
	// ErrNotConnected is returned for sends attempted while the transport is
	// down. The send is retryable once the channel reconnects.
	ErrNotConnected = errors.New("client: channel not connected")
	// ErrClosed is returned after Close or once reconnection has given up.
	ErrClosed = errors.New("client: channel closed")
)

const (
	reconnectBase     = time.Second
	reconnectCap      = 5 * time.Second
	reconnectAttempts = 5
	subscriptionDepth = 64
)

// Channel is one duplex connection to the server, owned by its creator and
// torn down with Close. It is not a singleton: opening a channel per login
// and closing it on logout is the expected lifecycle.
type Channel struct {
	url    string
	userID int64
	dialer *websocket.Dialer

	// reconnect tuning, overridden in tests
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	subs      map[string][]*Subscription
	err       error

	done      chan struct{}
	closeOnce sync.Once
}

// Subscription delivers events of one kind on C until Close is called.
// Closing is scoped teardown: it detaches only this subscription.
type Subscription struct {
	C chan models.Event

	kind string
	ch   *Channel
	once sync.Once
}

// Close detaches the subscription and closes C
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.ch.mu.Lock()
		defer s.ch.mu.Unlock()
		subs := s.ch.subs[s.kind]
		for i, sub := range subs {
			if sub == s {
				s.ch.subs[s.kind] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(s.C)
	})
}

// Dial opens a channel for the given user and announces user:join once the
// transport is up. The initial connection uses the same backoff schedule as
// reconnection; if every attempt fails the error is returned directly.
func Dial(ctx context.Context, url string, userID int64) (*Channel, error) {
	c := &Channel{
		url:         url,
		userID:      userID,
		dialer:      websocket.DefaultDialer,
		backoffBase: reconnectBase,
		backoffCap:  reconnectCap,
		maxAttempts: reconnectAttempts,
		subs:        make(map[string][]*Subscription),
		done:        make(chan struct{}),
	}

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return nil, err
	}
	c.adopt(conn)

	if err := c.announce(); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

func (c *Channel) dialOnce(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, ErrClosed
		}
	}
	return nil, lastErr
}

// backoff returns the delay after the given 1-based failed attempt:
// 1s, 2s, 3s, ... capped at 5s.
func (c *Channel) backoff(attempt int) time.Duration {
	c.mu.Lock()
	base, max := c.backoffBase, c.backoffCap
	c.mu.Unlock()

	d := time.Duration(attempt) * base
	if d > max {
		d = max
	}
	return d
}

func (c *Channel) adopt(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
}

// announce sends user:join on the current connection
func (c *Channel) announce() error {
	return c.write(models.EventUserJoin, models.JoinPayload{UserID: c.userID})
}

func (c *Channel) write(kind string, payload interface{}) error {
	ev, err := models.NewEvent(kind, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		if c.err != nil {
			return c.err
		}
		return ErrNotConnected
	}
	return c.conn.WriteJSON(ev)
}

// Send emits a message:send frame for the given text. The returned message is
// the optimistic copy: it carries a fresh client id, the derived conversation
// id and a local timestamp that the server will replace with the canonical
// one. The frame itself is fire-and-forget; the ack arrives later as a
// message:sent event. While disconnected Send returns ErrNotConnected along
// with the optimistic copy so the caller can retry it.
func (c *Channel) Send(senderID, recipientID int64, text string) (models.Message, error) {
	msg := models.Message{
		ClientID:       uuid.NewString(),
		ConversationID: models.ConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        text,
		Timestamp:      time.Now().UnixMilli(),
	}
	return msg, c.write(models.EventMessageSend, msg)
}

// LoadHistory requests the conversation history; the reply arrives as a
// messages:loaded event
func (c *Channel) LoadHistory(senderID, recipientID int64) error {
	return c.write(models.EventMessagesLoad, models.LoadPayload{
		SenderID:    senderID,
		RecipientID: recipientID,
	})
}

// Subscribe registers interest in one inbound event kind
func (c *Channel) Subscribe(kind string) *Subscription {
	sub := &Subscription{
		C:    make(chan models.Event, subscriptionDepth),
		kind: kind,
		ch:   c,
	}
	c.mu.Lock()
	c.subs[kind] = append(c.subs[kind], sub)
	c.mu.Unlock()
	return sub
}

// Connected reports whether the transport is currently up
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Done is closed when the channel has shut down, either by Close or because
// reconnection gave up
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the channel shut down, nil after a plain Close
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == ErrClosed {
		return nil
	}
	return c.err
}

// Close tears the channel down and detaches all subscriptions
func (c *Channel) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Channel) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = reason
		c.connected = false
		if c.conn != nil {
			c.conn.Close()
		}
		for kind, subs := range c.subs {
			for _, sub := range subs {
				sub.once.Do(func() { close(sub.C) })
			}
			delete(c.subs, kind)
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Channel) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			log.Printf("client: channel read error: %v", err)
			if !c.reconnect() {
				return
			}
			continue
		}

		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs[ev.Type] {
		select {
		case sub.C <- ev:
		default:
			// Slow subscriber, drop rather than block the read loop
		}
	}
}

// reconnect runs the backoff schedule and re-announces user:join on success.
// On exhaustion the channel shuts down with the transport error so the
// failure is observable through Err and Done instead of only a log line.
func (c *Channel) reconnect() bool {
	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	maxAttempts := c.maxAttempts
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-time.After(c.backoff(attempt)):
		case <-c.done:
			return false
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			lastErr = err
			log.Printf("client: reconnect attempt %d/%d failed: %v", attempt, maxAttempts, err)
			continue
		}

		c.adopt(conn)
		if err := c.announce(); err != nil {
			lastErr = err
			c.mu.Lock()
			c.connected = false
			conn.Close()
			c.conn = nil
			c.mu.Unlock()
			continue
		}
		return true
	}

	if lastErr == nil {
		lastErr = ErrNotConnected
	}
	c.shutdown(lastErr)
	return false
}
