package database

import (
	"instaclone/models"
)

// Notification queries

// CreateNotification inserts a notification for a user
func CreateNotification(ntype models.NotificationType, userID, fromUserID int64, postID *int64) (*models.Notification, error) {
	notif := &models.Notification{
		Type:       ntype,
		UserID:     userID,
		FromUserID: fromUserID,
		PostID:     postID,
	}
	err := DB.QueryRow(
		`INSERT INTO notifications (type, user_id, from_user_id, post_id)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		ntype, userID, fromUserID, postID,
	).Scan(&notif.ID, &notif.CreatedAt)
	if err != nil {
		return nil, err
	}
	return notif, nil
}

// GetNotifications retrieves notifications for a user, newest first
func GetNotifications(userID int64, limit int) ([]models.Notification, error) {
	rows, err := DB.Query(
		`SELECT id, type, user_id, from_user_id, post_id, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.UserID, &n.FromUserID, &n.PostID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one notification as read for its owner
func MarkNotificationRead(id, userID int64) error {
	_, err := DB.Exec(
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2",
		id, userID,
	)
	return err
}
