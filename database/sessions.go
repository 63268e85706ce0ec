package database

import (
	"time"

	"instaclone/models"
)

// Session queries

// CreateSession creates a new session for a user
func CreateSession(sessionID string, userID int64, expiresAt time.Time) error {
	_, err := DB.Exec(
		"INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)",
		sessionID, userID, expiresAt,
	)
	return err
}

// GetSession retrieves a session by its ID
func GetSession(sessionID string) (*models.Session, error) {
	session := &models.Session{}
	err := DB.QueryRow(
		"SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > NOW()",
		sessionID,
	).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session
func DeleteSession(sessionID string) error {
	_, err := DB.Exec("DELETE FROM sessions WHERE id = $1", sessionID)
	return err
}

// DeleteUserSessions removes all sessions for a user
func DeleteUserSessions(userID int64) error {
	_, err := DB.Exec("DELETE FROM sessions WHERE user_id = $1", userID)
	return err
}
