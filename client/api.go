package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"instaclone/models"
)

// API is the thin REST client used to seed conversation state: login, the
// user directory and the server-computed conversation summaries.
type API struct {
	base string
	http *http.Client
}

// NewAPI creates a REST client for the given server base URL. The cookie jar
// keeps the session across calls.
func NewAPI(base string) (*API, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &API{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}, nil
}

// Login authenticates and stores the session cookie
func (a *API) Login(ctx context.Context, username, password string) (*models.UserResponse, error) {
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/auth/login", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: login failed: %s", resp.Status)
	}

	var out struct {
		User models.UserResponse `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Directory fetches user directory entries matching q; empty q lists everyone
func (a *API) Directory(ctx context.Context, q string) ([]models.UserResponse, error) {
	var users []models.UserResponse
	err := a.get(ctx, "/api/search/users?q="+url.QueryEscape(q), &users)
	return users, err
}

// Summaries fetches the server-computed conversation summaries
func (a *API) Summaries(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := a.get(ctx, "/api/conversations", &convs)
	return convs, err
}

// MarkRead sends the read receipt for all messages from the given peer
func (a *API) MarkRead(ctx context.Context, peerID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/messages/%d/read", a.base, peerID), nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: mark read failed: %s", resp.Status)
	}
	return nil
}

// Notifications fetches the notification feed
func (a *API) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	err := a.get(ctx, "/api/notifications", &out)
	return out, err
}

func (a *API) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: GET %s failed: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
