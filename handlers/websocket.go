package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"instaclone/middleware"
	"instaclone/models"
)

const historyPageSize = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// MessageStore is the persistence the hub needs to relay chat traffic
type MessageStore interface {
	CreateMessage(clientID string, senderID, recipientID int64, content string) (*models.Message, error)
	GetMessagesBetweenUsers(userID1, userID2 int64, limit, offset int) ([]models.Message, error)
}

// Client represents one connected channel
type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int64
	hub    *Hub
	joined bool
}

// Hub maintains the set of active clients, keyed by user id, and relays
// channel events between them. One hub per server process.
type Hub struct {
	store      MessageStore
	clients    map[int64]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastPayload
	mutex      sync.RWMutex
}

type broadcastPayload struct {
	UserID  int64
	Message []byte
}

// NewHub creates a hub backed by the given store
func NewHub(store MessageStore) *Hub {
	return &Hub{
		store:      store,
		clients:    make(map[int64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastPayload, 256),
	}
}

// Run processes register/unregister/broadcast traffic until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.UserID] = client
			h.mutex.Unlock()
			log.Printf("Client connected: UserID %d", client.UserID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
			}
			// The client is out of the map either way; stop its write pump
			close(client.Send)
			h.mutex.Unlock()
			log.Printf("Client disconnected: UserID %d", client.UserID)

		case payload := <-h.broadcast:
			h.mutex.RLock()
			client, ok := h.clients[payload.UserID]
			h.mutex.RUnlock()
			if ok {
				select {
				case client.Send <- payload.Message:
				default:
					// Slow consumer; closing the conn routes cleanup
					// through the normal unregister path
					client.Conn.Close()
				}
			}
		}
	}
}

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID int64) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Push sends an event to a specific user's channel, if connected
func (h *Hub) Push(userID int64, kind string, payload interface{}) {
	ev, err := models.NewEvent(kind, payload)
	if err != nil {
		log.Printf("Error marshaling %s payload: %v", kind, err)
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", kind, err)
		return
	}

	h.broadcast <- broadcastPayload{
		UserID:  userID,
		Message: data,
	}
}

// ServeWS upgrades the connection and starts the channel's read/write pumps.
// The client is not registered until its user:join frame arrives; if a valid
// session is attached to the request, the session's user id wins over the
// announced one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
		hub:  h,
	}
	if user := middleware.GetUserFromContext(r); user != nil {
		client.UserID = user.ID
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		if c.joined {
			c.hub.unregister <- c
		} else {
			// Never registered, so the hub won't close Send for us;
			// do it here or writePump blocks forever
			close(c.Send)
		}
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case models.EventUserJoin:
			c.handleJoin(ev.Payload)
		case models.EventMessageSend:
			c.handleSend(ev.Payload)
		case models.EventMessagesLoad:
			c.handleLoad(ev.Payload)
		}
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *Client) handleJoin(payload json.RawMessage) {
	var join models.JoinPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		return
	}

	// A session-authenticated id always wins over the announced one
	if c.UserID == 0 {
		c.UserID = join.UserID
	}
	if c.UserID == 0 || c.joined {
		return
	}

	c.joined = true
	c.hub.register <- c
}

func (c *Client) handleSend(payload json.RawMessage) {
	if !c.joined {
		return
	}

	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	if msg.SenderID != c.UserID || msg.RecipientID == 0 || msg.Content == "" {
		c.sendError("invalid message")
		return
	}

	// Persist with a server-assigned timestamp and a recomputed conversation
	// id; the client's copies of both are display-only.
	stored, err := c.hub.store.CreateMessage(msg.ClientID, msg.SenderID, msg.RecipientID, msg.Content)
	if err != nil {
		log.Printf("Error storing message from %d: %v", msg.SenderID, err)
		c.sendError("failed to store message")
		return
	}

	// Ack the sender with the canonical row, then relay to the recipient
	c.hub.Push(stored.SenderID, models.EventMessageSent, stored)
	c.hub.Push(stored.RecipientID, models.EventMessageReceive, stored)
}

func (c *Client) handleLoad(payload json.RawMessage) {
	if !c.joined {
		return
	}

	var load models.LoadPayload
	if err := json.Unmarshal(payload, &load); err != nil {
		return
	}
	if load.SenderID != c.UserID && load.RecipientID != c.UserID {
		c.sendError("not a participant")
		return
	}

	messages, err := c.hub.store.GetMessagesBetweenUsers(load.SenderID, load.RecipientID, historyPageSize, 0)
	if err != nil {
		log.Printf("Error loading history for %d/%d: %v", load.SenderID, load.RecipientID, err)
		c.sendError("failed to load messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.hub.Push(c.UserID, models.EventMessagesLoaded, messages)
}

func (c *Client) sendError(message string) {
	c.hub.Push(c.UserID, models.EventError, models.ErrorPayload{Message: message})
}
