package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"nord/internal/models"

	"github.com/stretchr/testify/require"
)

func TestCoordinator_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		require.Equal(t, "cat.png", header.Filename)

		require.Equal(t, "general", r.FormValue("channel_id"))
		var user models.User
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("user")), &user))
		require.Equal(t, "u1", user.ID)

		_ = json.NewEncoder(w).Encode(models.FileRef{
			Filename: "cat.png",
			Size:     int64(len(pngHead)),
			MimeType: "image/png",
			URL:      "/uploads/cat.png",
		})
	}))
	defer srv.Close()

	c := NewCoordinator(srv.URL)
	ref, err := c.Upload(context.Background(), File{
		Name:     "cat.png",
		MimeType: "image/png",
		Content:  strings.NewReader(string(pngHead)),
	}, "general", models.User{ID: "u1", Username: "CoolFox1"})
	require.NoError(t, err)
	require.Equal(t, "/uploads/cat.png", ref.URL)
	require.Equal(t, "image/png", ref.MimeType)
}

func TestCoordinator_ValidationSkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	c := NewCoordinator(srv.URL)
	_, err := c.Upload(context.Background(), File{
		Name:     "tool.exe",
		Size:     1024,
		MimeType: "application/x-msdownload",
		Content:  strings.NewReader("MZ"),
	}, "general", models.User{ID: "u1"})

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	require.Equal(t, int32(0), requests.Load(), "validation failure must not reach the network")
}

func TestCoordinator_UnderreportedSize(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	// The declared size is tiny, the actual content is over the cap.
	oversized := bytes.NewReader(make([]byte, MaxFileSize+1))

	c := NewCoordinator(srv.URL)
	_, err := c.Upload(context.Background(), File{
		Name:     "big.png",
		Size:     1,
		MimeType: "image/png",
		Content:  oversized,
	}, "general", models.User{ID: "u1"})

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	require.Equal(t, int32(0), requests.Load(), "oversized content must not reach the network")
}

func TestCoordinator_ServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCoordinator(srv.URL)
	_, err := c.Upload(context.Background(), File{
		Name:     "cat.png",
		MimeType: "image/png",
		Content:  strings.NewReader(string(pngHead)),
	}, "general", models.User{ID: "u1"})

	var upErr *UploadError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, "cat.png", upErr.Filename)
}

func TestCoordinator_ResolveURL(t *testing.T) {
	c := NewCoordinator("http://localhost:5000/")

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"relative", "/uploads/cat.png", "http://localhost:5000/uploads/cat.png"},
		{"absolute", "https://cdn.example.com/cat.png", "https://cdn.example.com/cat.png"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ResolveURL(models.FileRef{URL: tt.url})
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
