// Package chatwork is a thin typed client for the Chatwork v2 REST API.
package chatwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/config"
)

const (
	defaultBaseURL = "https://api.chatwork.com/v2"
	tokenHeader    = "X-ChatWorkToken"

	// maxErrorBody bounds how much of a rejected response is kept
	maxErrorBody = 64 << 10
)

// Client calls the Chatwork API. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Chatwork client
func NewClient(cfg config.ChatworkConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      strings.TrimSpace(cfg.APIToken),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultChatworkTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRooms returns the rooms visible to the configured token
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var wire []wireRoom
	if err := c.get(ctx, "/rooms", nil, &wire); err != nil {
		return nil, err
	}

	rooms := make([]Room, 0, len(wire))
	for _, w := range wire {
		rooms = append(rooms, w.toRoom())
	}
	return rooms, nil
}

// ListOptions controls ListRoomMessages
type ListOptions struct {
	// Force fetches the latest 100 messages instead of only the unread ones
	Force bool
}

// ListRoomMessages returns the messages of a room
func (c *Client) ListRoomMessages(ctx context.Context, roomID string, opts ListOptions) ([]Message, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, apperr.InvalidArgument("room id is required")
	}

	query := url.Values{}
	if opts.Force {
		query.Set("force", "1")
	} else {
		query.Set("force", "0")
	}

	var wire []wireMessage
	if err := c.get(ctx, "/rooms/"+url.PathEscape(roomID)+"/messages", query, &wire); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(wire))
	for _, w := range wire {
		messages = append(messages, w.toMessage())
	}
	return messages, nil
}

// get performs a time-bounded GET and decodes a JSON body into out. A 204
// response leaves out untouched.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.token == "" {
		return apperr.Unconfigured("chatwork api token is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperr.Unreachable("failed to build chatwork request", err)
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.RemoteRejected(resp.StatusCode, decodeErrorBody(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, err)
		}
		return apperr.Unreachable("malformed chatwork response", err)
	}

	return nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Timeout("chatwork request timed out", err)
	}
	return apperr.Unreachable("chatwork is unreachable", err)
}

// decodeErrorBody returns the parsed JSON payload when possible, the raw
// text otherwise
func decodeErrorBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}

	var payload ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		return payload
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(body, &generic); err == nil {
		return generic
	}

	return strings.TrimSpace(string(body))
}

// ErrorResponse is the error payload Chatwork returns on rejected requests
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

func (e ErrorResponse) String() string {
	return fmt.Sprintf("chatwork: %s", strings.Join(e.Errors, "; "))
}
