package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nord/internal/models"

	"github.com/stretchr/testify/require"
)

func TestClient_GetMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/channels/general/messages", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]models.Message{
			{ID: "m1", Content: "hello", Timestamp: "2025-01-01T10:00:01Z"},
			{ID: "m2", Content: "world", Timestamp: "2025-01-01T10:00:02Z"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	messages, err := c.GetMessages(context.Background(), "general")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "m1", messages[0].ID)
	require.Equal(t, "m2", messages[1].ID)
}

func TestClient_GetChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/channels", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]models.Channel{
			{ID: "general", Name: "general"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	channels, err := c.GetChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "general", channels[0].ID)
}

func TestClient_GetMessagesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetMessages(context.Background(), "general")

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, http.StatusInternalServerError, fetchErr.Status)
}

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/channels/general/messages", r.URL.Path)

		var req postMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "hello", req.Message.Content)
		require.Equal(t, "u1", req.User.ID)

		_ = json.NewEncoder(w).Encode(postMessageResponse{
			Success: true,
			Message: models.Message{
				ID:        "srv-1",
				ChannelID: "general",
				UserID:    req.User.ID,
				Content:   req.Message.Content,
				Type:      req.Message.Type,
				Timestamp: "2025-01-01T10:00:01Z",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	msg, err := c.SendMessage(context.Background(), "general",
		models.MessageDraft{Content: "hello", Type: models.MessageTypeText},
		models.User{ID: "u1", Username: "CoolFox1"})
	require.NoError(t, err)

	// The server-assigned id and timestamp are authoritative.
	require.Equal(t, "srv-1", msg.ID)
	require.Equal(t, "2025-01-01T10:00:01Z", msg.Timestamp)
}

func TestClient_SendMessageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(postMessageResponse{Success: false, Error: "channel archived"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SendMessage(context.Background(), "general",
		models.MessageDraft{Content: "hello"}, models.User{ID: "u1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "channel archived")
}
