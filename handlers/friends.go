package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"instaclone/database"
	"instaclone/middleware"
	"instaclone/models"
)

type addFriendRequest struct {
	Username string `json:"username"`
}

// GetFriends returns all friends for the current user
func (h *Handler) GetFriends(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	friends, err := database.GetFriends(user.ID)
	if err != nil {
		http.Error(w, `{"error": "Failed to get friends"}`, http.StatusInternalServerError)
		return
	}

	// Add online status
	for i := range friends {
		friends[i].Online = h.hub.IsUserOnline(friends[i].ID)
	}

	if friends == nil {
		friends = []models.UserResponse{}
	}

	json.NewEncoder(w).Encode(friends)
}

// GetFriendRequests returns pending friend requests for the current user
func (h *Handler) GetFriendRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	requests, err := database.GetPendingFriendRequests(user.ID)
	if err != nil {
		http.Error(w, `{"error": "Failed to get friend requests"}`, http.StatusInternalServerError)
		return
	}

	if requests == nil {
		requests = []models.FriendRequest{}
	}

	json.NewEncoder(w).Encode(requests)
}

// AddFriend sends a friend request and notifies the target user
func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req addFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	friend, err := database.GetUserByUsername(req.Username)
	if err != nil {
		http.Error(w, `{"error": "User not found"}`, http.StatusNotFound)
		return
	}

	if friend.ID == user.ID {
		http.Error(w, `{"error": "Cannot add yourself"}`, http.StatusBadRequest)
		return
	}

	// Check for existing friendship in either direction
	if _, err := database.GetFriendship(user.ID, friend.ID); err == nil {
		http.Error(w, `{"error": "Friend request already exists"}`, http.StatusConflict)
		return
	}

	if err := database.CreateFriendRequest(user.ID, friend.ID); err != nil {
		http.Error(w, `{"error": "Failed to send friend request"}`, http.StatusInternalServerError)
		return
	}

	h.notify(models.NotificationFollow, friend.ID, user.ID, nil)

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// AcceptFriend accepts a pending friend request
func (h *Handler) AcceptFriend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	requestID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid request ID"}`, http.StatusBadRequest)
		return
	}

	friendship, err := database.AcceptFriendRequest(requestID, user.ID)
	if err != nil {
		http.Error(w, `{"error": "Friend request not found"}`, http.StatusNotFound)
		return
	}

	// Tell the requester their follow was accepted
	h.notify(models.NotificationFollow, friendship.UserID, user.ID, nil)

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// RemoveFriend removes a friendship
func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	friendID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid user ID"}`, http.StatusBadRequest)
		return
	}

	if err := database.DeleteFriend(user.ID, friendID); err != nil {
		http.Error(w, `{"error": "Friendship not found"}`, http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
