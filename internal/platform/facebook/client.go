// Package facebook is a thin client for the Conversions API server-side
// events endpoint.
package facebook

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

const (
	defaultBaseURL      = "https://graph.facebook.com"
	defaultGraphVersion = "v18.0"
	defaultTimeout      = 10 * time.Second
)

// Event is one server-side conversion event.
type Event struct {
	EventName      string      `json:"event_name"`
	EventTime      int64       `json:"event_time"`
	EventID        string      `json:"event_id,omitempty"`
	EventSourceURL string      `json:"event_source_url,omitempty"`
	ActionSource   string      `json:"action_source"`
	UserData       UserData    `json:"user_data"`
	CustomData     *CustomData `json:"custom_data,omitempty"`
}

// UserData carries match keys. Hashing of personal identifiers happens before
// this struct is populated; the client transmits fields as given.
type UserData struct {
	ExternalID      string `json:"external_id,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	FBP             string `json:"fbp,omitempty"`
	City            string `json:"ct,omitempty"`
	State           string `json:"st,omitempty"`
	Zip             string `json:"zp,omitempty"`
	Country         string `json:"country,omitempty"`
}

// CustomData carries optional commerce fields.
type CustomData struct {
	ContentName string  `json:"content_name,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Value       float64 `json:"value,omitempty"`
}

// APIError is the structured error object the platform reports in-band.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facebook: %s (type=%s code=%d)", e.Message, e.Type, e.Code)
}

// Response is the parsed events-endpoint response. Exactly one of
// EventsReceived > 0 or Error is expected; anything else is an unexpected
// response the caller must treat as a failure.
type Response struct {
	EventsReceived int       `json:"events_received"`
	FBTraceID      string    `json:"fbtrace_id"`
	Error          *APIError `json:"error,omitempty"`
}

// Client posts conversion events to the Graph API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	graphVersion string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient injects the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the Graph API host.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithGraphVersion pins the Graph API version segment.
func WithGraphVersion(v string) Option {
	return func(c *Client) { c.graphVersion = v }
}

// NewClient builds a Conversions API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      defaultBaseURL,
		graphVersion: defaultGraphVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendEvents performs a single POST to /{version}/{accountID}/events. A
// completed round trip returns the parsed response even when the platform
// reports an in-band error; only transport-level failures return a non-nil
// error.
func (c *Client) SendEvents(ctx context.Context, accountID, accessToken string, events []Event) (*Response, error) {
	body, err := json.Marshal(map[string]any{"data": events})
	if err != nil {
		return nil, fmt.Errorf("facebook: marshal events: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		c.baseURL, c.graphVersion, url.PathEscape(accountID), url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("facebook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook: post events: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("facebook: read response: %w", err)
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("facebook: decode response (status %d): %w", resp.StatusCode, err)
	}

	return &parsed, nil
}
