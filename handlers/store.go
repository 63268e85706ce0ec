package handlers

import (
	"instaclone/database"
	"instaclone/models"
)

// DBStore adapts the database package to the hub's MessageStore interface
type DBStore struct{}

func (DBStore) CreateMessage(clientID string, senderID, recipientID int64, content string) (*models.Message, error) {
	return database.CreateMessage(clientID, senderID, recipientID, content)
}

func (DBStore) GetMessagesBetweenUsers(userID1, userID2 int64, limit, offset int) ([]models.Message, error) {
	return database.GetMessagesBetweenUsers(userID1, userID2, limit, offset)
}
