package models

import "encoding/json"

// Channel event kinds. The first three travel client to server, the rest
// server to client.
const (
	EventUserJoin     = "user:join"
	EventMessageSend  = "message:send"
	EventMessagesLoad = "messages:load"

	EventMessageReceive  = "message:receive"
	EventMessageSent     = "message:sent"
	EventMessagesLoaded  = "messages:loaded"
	EventMessagesRead    = "messages:read"
	EventNotificationNew = "notification:new"
	EventError           = "error"
)

// Event is the wire format for all realtime channel frames
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent builds an Event with the payload marshaled in place
func NewEvent(kind string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: kind, Payload: data}, nil
}

// JoinPayload announces the connecting user on the channel
type JoinPayload struct {
	UserID int64 `json:"user_id"`
}

// LoadPayload requests the message history for a conversation
type LoadPayload struct {
	SenderID    int64 `json:"sender_id"`
	RecipientID int64 `json:"recipient_id"`
}

// ReadPayload notifies a sender that their messages were read
type ReadPayload struct {
	ReaderID int64 `json:"reader_id"`
}

// ErrorPayload reports a server-side failure back to the sender
type ErrorPayload struct {
	Message string `json:"message"`
}
