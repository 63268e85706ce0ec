package database

import (
	"database/sql"
	"time"

	"instaclone/models"
)

// Friend queries

// CreateFriendRequest creates a friend request
func CreateFriendRequest(userID, friendID int64) error {
	_, err := DB.Exec(
		"INSERT INTO friends (user_id, friend_id, status) VALUES ($1, $2, 'pending')",
		userID, friendID,
	)
	return err
}

// GetFriendship retrieves a friendship record in either direction
func GetFriendship(userID, friendID int64) (*models.Friend, error) {
	friend := &models.Friend{}
	err := DB.QueryRow(
		`SELECT id, user_id, friend_id, status, created_at FROM friends
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		userID, friendID,
	).Scan(&friend.ID, &friend.UserID, &friend.FriendID, &friend.Status, &friend.CreatedAt)
	if err != nil {
		return nil, err
	}
	return friend, nil
}

// AcceptFriendRequest accepts a pending friend request addressed to userID.
// It returns the accepted record so callers can notify the requester.
func AcceptFriendRequest(requestID int64, userID int64) (*models.Friend, error) {
	friend := &models.Friend{}
	err := DB.QueryRow(
		`UPDATE friends SET status = 'accepted'
		WHERE id = $1 AND friend_id = $2 AND status = 'pending'
		RETURNING id, user_id, friend_id, status, created_at`,
		requestID, userID,
	).Scan(&friend.ID, &friend.UserID, &friend.FriendID, &friend.Status, &friend.CreatedAt)
	if err != nil {
		return nil, err
	}

	// Keep the denormalized follower counters in step
	DB.Exec("UPDATE users SET followers = followers + 1 WHERE id = $1", friend.FriendID)
	DB.Exec("UPDATE users SET following = following + 1 WHERE id = $1", friend.UserID)

	return friend, nil
}

// GetFriends retrieves all accepted friends for a user
func GetFriends(userID int64) ([]models.UserResponse, error) {
	rows, err := DB.Query(
		`SELECT u.id, u.username, u.full_name, u.avatar, u.bio, u.website, u.followers, u.following, u.created_at
		FROM users u
		JOIN friends f ON (f.user_id = u.id OR f.friend_id = u.id)
		WHERE ((f.user_id = $1 OR f.friend_id = $1) AND f.status = 'accepted')
		  AND u.id != $1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []models.UserResponse
	seen := make(map[int64]bool)
	for rows.Next() {
		var user models.UserResponse
		if err := rows.Scan(&user.ID, &user.Username, &user.FullName, &user.Avatar, &user.Bio, &user.Website, &user.Followers, &user.Following, &user.CreatedAt); err != nil {
			return nil, err
		}
		if !seen[user.ID] {
			friends = append(friends, user)
			seen[user.ID] = true
		}
	}
	return friends, rows.Err()
}

// GetPendingFriendRequests retrieves pending friend requests for a user
func GetPendingFriendRequests(userID int64) ([]models.FriendRequest, error) {
	rows, err := DB.Query(
		`SELECT f.id, u.id, u.username, u.full_name, u.avatar, u.created_at, f.status, f.created_at
		FROM friends f
		JOIN users u ON f.user_id = u.id
		WHERE f.friend_id = $1 AND f.status = 'pending'`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		var userCreatedAt time.Time
		if err := rows.Scan(
			&req.ID, &req.From.ID, &req.From.Username, &req.From.FullName,
			&req.From.Avatar, &userCreatedAt, &req.Status, &req.CreatedAt,
		); err != nil {
			return nil, err
		}
		req.From.CreatedAt = userCreatedAt
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// DeleteFriend removes a friendship
func DeleteFriend(userID, friendID int64) error {
	result, err := DB.Exec(
		"DELETE FROM friends WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)",
		userID, friendID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
