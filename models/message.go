package models

import "fmt"

// Message represents a chat message between two users.
//
// Timestamp is epoch milliseconds assigned by the server at insert time and
// is the canonical ordering key for a conversation. ClientID is generated by
// the sending client and carried through the round trip so optimistic sends
// can be reconciled with the persisted row.
type Message struct {
	ID             int64  `json:"id"`
	ClientID       string `json:"client_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	RecipientID    int64  `json:"recipient_id"`
	Content        string `json:"message"`
	Read           bool   `json:"read"`
	Timestamp      int64  `json:"timestamp"`
}

// Conversation represents a chat thread summary with another user
type Conversation struct {
	User        UserResponse `json:"user"`
	LastMessage *Message     `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}

// ConversationID derives the id of the conversation between two users.
// It is order-independent: ConversationID(a, b) == ConversationID(b, a).
// Client and server must both use this function so every message row maps
// to exactly one conversation.
func ConversationID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}
