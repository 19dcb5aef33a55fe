// Package telegram is a thin client for the Bot API methods this service
// needs: webhook lifecycle, invite link creation, and message sending.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
)

// APIError is a platform-reported (in-band) Bot API failure.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s (code=%d)", e.Description, e.Code)
}

// Client calls the Bot API. The bot token is passed per call so one client
// serves every stored bot.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient injects the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the Bot API host.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// NewClient builds a Bot API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMe fetches the bot's own account, useful as a credential check.
func (c *Client) GetMe(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.call(ctx, token, "getMe", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetWebhook registers the webhook URL for a bot.
func (c *Client) SetWebhook(ctx context.Context, token string, params SetWebhookParams) error {
	return c.call(ctx, token, "setWebhook", params, nil)
}

// DeleteWebhook removes the bot's webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context, token string) error {
	return c.call(ctx, token, "deleteWebhook", nil, nil)
}

// GetWebhookInfo reports the bot's current webhook registration.
func (c *Client) GetWebhookInfo(ctx context.Context, token string) (*WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, token, "getWebhookInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateChatInviteLink creates a dynamic invite link for the bot's chat.
func (c *Client) CreateChatInviteLink(ctx context.Context, token string, params CreateInviteLinkParams) (*ChatInviteLink, error) {
	var link ChatInviteLink
	if err := c.call(ctx, token, "createChatInviteLink", params, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// SendMessage sends a message on behalf of the bot.
func (c *Client) SendMessage(ctx context.Context, token string, params SendMessageParams) (*Message, error) {
	var msg Message
	if err := c.call(ctx, token, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) call(ctx context.Context, token, method string, params any, out any) error {
	var body io.Reader
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("telegram: marshal %s params: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("telegram: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !env.OK {
		return &APIError{Code: env.ErrorCode, Description: env.Description}
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram: decode %s result: %w", method, err)
		}
	}
	return nil
}
