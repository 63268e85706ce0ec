package middleware

import (
	"context"
	"net/http"
	"strings"

	"instaclone/database"
	"instaclone/models"
)

type contextKey string

const UserContextKey contextKey = "user"

const bearerPrefix = "Bearer "

// sessionToken extracts the session token from the request. Browser clients
// carry it in the session cookie; the desktop client sends it as a bearer
// token because it talks to /ws and /api without a cookie jar.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimPrefix(auth, bearerPrefix)
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}

// resolveUser looks up the user behind a session token. A token that no
// longer resolves (expired or revoked) gets its row cleaned up so the
// sessions table doesn't accumulate stale entries.
func resolveUser(token string) *models.User {
	if token == "" {
		return nil
	}
	session, err := database.GetSession(token)
	if err != nil {
		database.DeleteSession(token)
		return nil
	}
	user, err := database.GetUserByID(session.UserID)
	if err != nil {
		return nil
	}
	return user
}

// Auth rejects requests without a valid session and adds the user to context
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := resolveUser(sessionToken(r))
		if user == nil {
			http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth tries to authenticate but doesn't fail if not authenticated
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := resolveUser(sessionToken(r)); user != nil {
			r = r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
