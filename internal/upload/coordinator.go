package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"nord/internal/models"
)

// UploadError is a failed transmission: non-2xx response or network
// failure. The chat message composed around the attachment must not be
// sent when the upload fails.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q failed: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// File describes one attachment to validate and transmit.
type File struct {
	Name     string
	Size     int64
	MimeType string
	Content  io.Reader
}

// Coordinator validates and transmits attachments. It does not send the
// chat message embedding the returned FileRef; composition belongs to
// the caller, and upload plus send are two independent operations with
// no transactional link between them.
type Coordinator struct {
	baseURL string
	http    *http.Client
}

func NewCoordinator(baseURL string) *Coordinator {
	return &Coordinator{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Upload validates the file, then transmits it as multipart form data
// and returns the server-assigned FileRef. Validation failures are
// returned before any network call.
func (c *Coordinator) Upload(ctx context.Context, file File, channelID string, user models.User) (models.FileRef, error) {
	content, err := io.ReadAll(io.LimitReader(file.Content, MaxFileSize+1))
	if err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}

	// The declared size is advisory; the bytes actually read win when
	// they disagree, so an underreported Size cannot bypass the cap.
	size := max(file.Size, int64(len(content)))
	if err := Validate(file.Name, size, file.MimeType, content); err != nil {
		return models.FileRef{}, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", file.Name)
	if err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}
	if _, err := part.Write(content); err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}

	if err := form.WriteField("channel_id", channelID); err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}
	if err := form.WriteField("user", string(userJSON)); err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}
	if err := form.Close(); err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.FileRef{}, &UploadError{
			Filename: file.Name,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var ref models.FileRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return models.FileRef{}, &UploadError{Filename: file.Name, Err: err}
	}

	return ref, nil
}

// ResolveURL resolves the relative URL of a FileRef against the API
// base for display.
func (c *Coordinator) ResolveURL(ref models.FileRef) string {
	if ref.URL == "" || strings.Contains(ref.URL, "://") {
		return ref.URL
	}
	return c.baseURL + ref.URL
}
