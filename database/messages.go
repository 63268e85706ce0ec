package database

import (
	"sort"
	"time"

	"instaclone/models"
)

// Message queries

// CreateMessage persists a message. The conversation id is recomputed here so
// the stored value always matches what the client derived, and created_at is
// assigned server-side in epoch milliseconds. Identical content from the same
// sender is never deduplicated; the client_id uniqueness constraint only
// rejects a retransmit of the same logical send.
func CreateMessage(clientID string, senderID, recipientID int64, content string) (*models.Message, error) {
	msg := &models.Message{
		ClientID:       clientID,
		ConversationID: models.ConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Timestamp:      time.Now().UnixMilli(),
	}

	err := DB.QueryRow(
		`INSERT INTO messages (client_id, conversation_id, sender_id, recipient_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		msg.ClientID, msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Content, msg.Timestamp,
	).Scan(&msg.ID)
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// GetMessagesBetweenUsers retrieves messages between two users, newest first.
// Callers that render chronologically must reverse; that is the client's job.
func GetMessagesBetweenUsers(userID1, userID2 int64, limit, offset int) ([]models.Message, error) {
	rows, err := DB.Query(
		`SELECT id, client_id, conversation_id, sender_id, recipient_id, content, read, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		models.ConversationID(userID1, userID2), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID, &msg.ClientID, &msg.ConversationID, &msg.SenderID, &msg.RecipientID,
			&msg.Content, &msg.Read, &msg.Timestamp,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetConversations retrieves all conversation summaries for a user: the peer,
// the last message and the unread count, newest conversation first.
func GetConversations(userID int64) ([]models.Conversation, error) {
	rows, err := DB.Query(
		`SELECT DISTINCT
			CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END as other_user_id
		FROM messages m
		WHERE m.sender_id = $1 OR m.recipient_id = $1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peerIDs []int64
	for rows.Next() {
		var otherUserID int64
		if err := rows.Scan(&otherUserID); err != nil {
			return nil, err
		}
		peerIDs = append(peerIDs, otherUserID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var conversations []models.Conversation
	for _, otherUserID := range peerIDs {
		user, err := GetUserByID(otherUserID)
		if err != nil {
			continue
		}

		var lastMsg models.Message
		err = DB.QueryRow(
			`SELECT id, client_id, conversation_id, sender_id, recipient_id, content, read, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC LIMIT 1`,
			models.ConversationID(userID, otherUserID),
		).Scan(&lastMsg.ID, &lastMsg.ClientID, &lastMsg.ConversationID, &lastMsg.SenderID,
			&lastMsg.RecipientID, &lastMsg.Content, &lastMsg.Read, &lastMsg.Timestamp)

		var unreadCount int
		DB.QueryRow(
			`SELECT COUNT(*) FROM messages
			WHERE sender_id = $1 AND recipient_id = $2 AND read = FALSE`,
			otherUserID, userID,
		).Scan(&unreadCount)

		conv := models.Conversation{
			User:        user.ToResponse(),
			UnreadCount: unreadCount,
		}
		if err == nil {
			conv.LastMessage = &lastMsg
		}

		conversations = append(conversations, conv)
	}

	// Newest conversation first, by last-message timestamp
	sort.Slice(conversations, func(i, j int) bool {
		return lastTimestamp(conversations[i]) > lastTimestamp(conversations[j])
	})

	return conversations, nil
}

func lastTimestamp(c models.Conversation) int64 {
	if c.LastMessage == nil {
		return 0
	}
	return c.LastMessage.Timestamp
}

// MarkMessagesAsRead marks all messages from a sender to a recipient as read
func MarkMessagesAsRead(senderID, recipientID int64) error {
	_, err := DB.Exec(
		"UPDATE messages SET read = TRUE WHERE sender_id = $1 AND recipient_id = $2 AND read = FALSE",
		senderID, recipientID,
	)
	return err
}
