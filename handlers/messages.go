package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"instaclone/database"
	"instaclone/middleware"
	"instaclone/models"
)

// GetConversations returns all conversation summaries for the current user
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	conversations, err := database.GetConversations(user.ID)
	if err != nil {
		http.Error(w, `{"error": "Failed to get conversations"}`, http.StatusInternalServerError)
		return
	}

	// Add online status
	for i := range conversations {
		conversations[i].User.Online = h.hub.IsUserOnline(conversations[i].User.ID)
	}

	if conversations == nil {
		conversations = []models.Conversation{}
	}

	json.NewEncoder(w).Encode(conversations)
}

// GetMessages returns messages between the current user and another user,
// newest first. It also marks the other user's messages as read.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	otherUserID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid user ID"}`, http.StatusBadRequest)
		return
	}

	// Get pagination params
	limit := historyPageSize
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	messages, err := database.GetMessagesBetweenUsers(user.ID, otherUserID, limit, offset)
	if err != nil {
		http.Error(w, `{"error": "Failed to get messages"}`, http.StatusInternalServerError)
		return
	}

	// Mark messages as read; history still loads if this fails
	if err := database.MarkMessagesAsRead(otherUserID, user.ID); err != nil {
		log.Println("Failed to mark messages as read:", err)
	}

	if messages == nil {
		messages = []models.Message{}
	}

	json.NewEncoder(w).Encode(messages)
}

// MarkAsRead marks messages from a user as read and notifies the sender
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	senderID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid user ID"}`, http.StatusBadRequest)
		return
	}

	if err := database.MarkMessagesAsRead(senderID, user.ID); err != nil {
		http.Error(w, `{"error": "Failed to mark as read"}`, http.StatusInternalServerError)
		return
	}

	// Notify sender that their messages were read
	h.hub.Push(senderID, models.EventMessagesRead, models.ReadPayload{ReaderID: user.ID})

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
