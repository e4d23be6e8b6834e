package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TokenSource supplies the current bearer token. Implemented by the
// credential store; returns "" when unauthenticated.
type TokenSource interface {
	Token() string
}

// staticToken is a TokenSource for a fixed token, used before the
// credential store is primed.
type staticToken string

func (s staticToken) Token() string { return string(s) }

// StaticToken wraps a literal token as a TokenSource.
func StaticToken(tok string) TokenSource { return staticToken(tok) }

// Client talks to the chirp HTTP API. All methods are safe for concurrent
// use. The base URL carries no trailing slash and no /api suffix; the
// client appends paths under /api itself.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates an API client for the given server base URL.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// LoginResult is the server response to a successful login or signup.
type LoginResult struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// SignupRequest carries the full profile the server requires at signup.
type SignupRequest struct {
	FullName    string `json:"fullName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Country     string `json:"country"`
	Password    string `json:"password"`
}

// Friend is a roster entry as the server returns it. ID is the internal
// record id used for messaging; UserID is the short public handle friends
// search by.
type Friend struct {
	ID       string `json:"_id"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// HistoryMessage is one message from the server-side conversation history.
type HistoryMessage struct {
	ID     string `json:"_id"`
	Sender struct {
		ID       string `json:"_id"`
		UserID   string `json:"userId"`
		Username string `json:"username"`
	} `json:"sender"`
	Receiver struct {
		ID string `json:"_id"`
	} `json:"receiver"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Login exchanges a username (or email) and password for a token.
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error) {
	body := map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	}
	var result LoginResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Signup registers a new account. On success the server also issues a
// token, so signup doubles as the first login.
func (c *Client) Signup(ctx context.Context, req *SignupRequest) (*LoginResult, error) {
	var result LoginResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/signup", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Friends returns the authenticated user's friend list.
func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	if err := c.doRequest(ctx, http.MethodGet, "/api/users/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// SearchUser looks up a user by their public user id.
func (c *Client) SearchUser(ctx context.Context, userID string) (*Friend, error) {
	var friend Friend
	path := "/api/users/search/" + url.PathEscape(userID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &friend); err != nil {
		return nil, err
	}
	return &friend, nil
}

// AddFriend adds the user with the given internal id to the friend list.
func (c *Client) AddFriend(ctx context.Context, friendID string) error {
	body := map[string]string{"friendId": friendID}
	return c.doRequest(ctx, http.MethodPost, "/api/users/add-friend", body, nil)
}

// History fetches the stored conversation with the given peer, oldest
// first.
func (c *Client) History(ctx context.Context, peerID string) ([]HistoryMessage, error) {
	var messages []HistoryMessage
	path := "/api/messages/" + url.PathEscape(peerID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
