package handlers

import (
	"encoding/json"
	"net/http"

	"instaclone/database"
	"instaclone/middleware"
	"instaclone/models"
)

// Handler exposes the REST endpoints that need the hub for online status or
// realtime pushes
type Handler struct {
	hub *Hub
}

// New creates the REST handler bound to a hub
func New(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// SearchUsers returns user directory entries matching the q parameter.
// With an empty q it returns the directory itself, which seeds the
// conversation list for peers without history.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	users, err := database.SearchUsers(r.URL.Query().Get("q"), user.ID)
	if err != nil {
		http.Error(w, `{"error": "Failed to search users"}`, http.StatusInternalServerError)
		return
	}

	// Add online status
	for i := range users {
		users[i].Online = h.hub.IsUserOnline(users[i].ID)
	}

	if users == nil {
		users = []models.UserResponse{}
	}

	json.NewEncoder(w).Encode(users)
}
