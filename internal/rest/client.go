package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"nord/internal/models"
)

// FetchError is a non-2xx response from the API.
type FetchError struct {
	Status int
	Path   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.Path, e.Status)
}

// Client talks to the HTTP fallback endpoints. It carries no session
// state; the poller and the store own lifecycle concerns.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Status: resp.StatusCode, Path: path}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) GetChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := c.get(ctx, "/api/channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// GetMessages fetches the full message list for a channel. It is used
// both for the initial load and for every poll tick.
func (c *Client) GetMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	var messages []models.Message
	if err := c.get(ctx, "/api/channels/"+channelID+"/messages", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

type postMessageRequest struct {
	Message models.MessageDraft `json:"message"`
	User    models.User         `json:"user"`
}

type postMessageResponse struct {
	Success bool           `json:"success"`
	Message models.Message `json:"message"`
	Error   string         `json:"error,omitempty"`
}

// SendMessage is the synchronous request/response send used in polling
// mode. The returned message is authoritative (server-assigned id and
// timestamp) and must be applied to local state directly; no inbound
// event will follow.
func (c *Client) SendMessage(ctx context.Context, channelID string, draft models.MessageDraft, user models.User) (models.Message, error) {
	path := "/api/channels/" + channelID + "/messages"

	body, err := json.Marshal(postMessageRequest{Message: draft, User: user})
	if err != nil {
		return models.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return models.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.Message{}, &FetchError{Status: resp.StatusCode, Path: path}
	}

	var out postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	if !out.Success {
		return models.Message{}, fmt.Errorf("send message rejected: %s", out.Error)
	}

	return out.Message, nil
}
