package database

import (
	"instaclone/models"
)

// User queries

// CreateUser inserts a new user into the database
func CreateUser(username, fullName, email, password string) (*models.User, error) {
	var id int64
	err := DB.QueryRow(
		"INSERT INTO users (username, full_name, email, password) VALUES ($1, $2, $3, $4) RETURNING id",
		username, fullName, email, password,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	return GetUserByID(id)
}

// GetUserByID retrieves a user by their ID
func GetUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	err := DB.QueryRow(
		"SELECT id, username, full_name, email, password, avatar, bio, website, followers, following, created_at FROM users WHERE id = $1",
		id,
	).Scan(&user.ID, &user.Username, &user.FullName, &user.Email, &user.Password, &user.Avatar, &user.Bio, &user.Website, &user.Followers, &user.Following, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username
func GetUserByUsername(username string) (*models.User, error) {
	user := &models.User{}
	err := DB.QueryRow(
		"SELECT id, username, full_name, email, password, avatar, bio, website, followers, following, created_at FROM users WHERE username = $1",
		username,
	).Scan(&user.ID, &user.Username, &user.FullName, &user.Email, &user.Password, &user.Avatar, &user.Bio, &user.Website, &user.Followers, &user.Following, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by their email
func GetUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	err := DB.QueryRow(
		"SELECT id, username, full_name, email, password, avatar, bio, website, followers, following, created_at FROM users WHERE email = $1",
		email,
	).Scan(&user.ID, &user.Username, &user.FullName, &user.Email, &user.Password, &user.Avatar, &user.Bio, &user.Website, &user.Followers, &user.Following, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SearchUsers searches the user directory by username or full name.
// An empty query returns the directory (everyone but the current user).
func SearchUsers(query string, currentUserID int64) ([]models.UserResponse, error) {
	rows, err := DB.Query(
		`SELECT id, username, full_name, avatar, bio, website, followers, following, created_at FROM users
		WHERE (username ILIKE $1 OR full_name ILIKE $1) AND id != $2
		ORDER BY username LIMIT 50`,
		"%"+query+"%", currentUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserResponse
	for rows.Next() {
		var user models.UserResponse
		if err := rows.Scan(&user.ID, &user.Username, &user.FullName, &user.Avatar, &user.Bio, &user.Website, &user.Followers, &user.Following, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
