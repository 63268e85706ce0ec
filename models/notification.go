package models

import "time"

// NotificationType is the kind of activity a notification describes
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// Notification represents a like/comment/follow event for a user
type Notification struct {
	ID         int64            `json:"id"`
	Type       NotificationType `json:"type"`
	UserID     int64            `json:"user_id"`
	FromUserID int64            `json:"from_user_id"`
	PostID     *int64           `json:"post_id,omitempty"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`
}
