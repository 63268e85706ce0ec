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

// GetNotifications returns the notification feed for the current user
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	notifications, err := database.GetNotifications(user.ID, 50)
	if err != nil {
		http.Error(w, `{"error": "Failed to get notifications"}`, http.StatusInternalServerError)
		return
	}

	if notifications == nil {
		notifications = []models.Notification{}
	}

	json.NewEncoder(w).Encode(notifications)
}

// MarkNotificationRead marks one notification as read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid notification ID"}`, http.StatusBadRequest)
		return
	}

	if err := database.MarkNotificationRead(id, user.ID); err != nil {
		http.Error(w, `{"error": "Failed to mark as read"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// notify persists a notification and pushes it to the recipient's channel.
// The message insert and the notification insert are separate statements;
// a notification failure never fails the triggering operation.
func (h *Handler) notify(ntype models.NotificationType, userID, fromUserID int64, postID *int64) {
	notif, err := database.CreateNotification(ntype, userID, fromUserID, postID)
	if err != nil {
		return
	}
	h.hub.Push(userID, models.EventNotificationNew, notif)
}
