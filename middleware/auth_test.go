package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"instaclone/models"
)

func TestSessionTokenFromBearerHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/messages", nil)
	r.Header.Set("Authorization", "Bearer tok-123")

	assert.Equal(t, "tok-123", sessionToken(r))
}

func TestSessionTokenFromCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/messages", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "cookie-tok"})

	assert.Equal(t, "cookie-tok", sessionToken(r))
}

func TestSessionTokenPrefersHeaderOverCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/messages", nil)
	r.Header.Set("Cookie", "session=cookie-tok")
	r.Header.Set("Authorization", "Bearer header-tok")

	assert.Equal(t, "header-tok", sessionToken(r))
}

func TestSessionTokenMissing(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/messages", nil)
	assert.Empty(t, sessionToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, sessionToken(r))
}

func TestGetUserFromContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, GetUserFromContext(r))

	u := &models.User{ID: 4, Username: "dana"}
	r = r.WithContext(context.WithValue(r.Context(), UserContextKey, u))
	assert.Equal(t, u, GetUserFromContext(r))
}
