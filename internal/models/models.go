package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

type UserStatus string

const (
	UserStatusOnline    UserStatus = "online"
	UserStatusIdle      UserStatus = "idle"
	UserStatusDND       UserStatus = "dnd"
	UserStatusInvisible UserStatus = "invisible"
)

// User represents a chat participant. The local identity is created once
// per install and persisted; remote users arrive in presence snapshots.
type User struct {
	ID        string     `json:"id" msgpack:"id"`
	Username  string     `json:"username" msgpack:"username"`
	Avatar    string     `json:"avatar,omitempty" msgpack:"avatar"`
	Status    UserStatus `json:"status" msgpack:"status"`
	CreatedAt string     `json:"createdAt,omitempty" msgpack:"createdAt"`
}

// Channel represents a named topic-scoped message stream.
type Channel struct {
	ID          string `json:"id" msgpack:"id"`
	Name        string `json:"name" msgpack:"name"`
	Type        string `json:"type,omitempty" msgpack:"type"`
	Description string `json:"description,omitempty" msgpack:"description"`
	CreatedAt   string `json:"createdAt,omitempty" msgpack:"createdAt"`
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeImage  MessageType = "image"
	MessageTypeVideo  MessageType = "video"
	MessageTypeSystem MessageType = "system"
)

// FileRef is the server-resolved descriptor for an uploaded attachment.
// The URL is relative and must be resolved against the configured API base.
type FileRef struct {
	ID           string `json:"id,omitempty" msgpack:"id"`
	Filename     string `json:"filename" msgpack:"filename"`
	Size         int64  `json:"size" msgpack:"size"`
	MimeType     string `json:"type" msgpack:"type"`
	URL          string `json:"url" msgpack:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" msgpack:"thumbnailUrl"`
	UploadedAt   string `json:"uploaded_at,omitempty" msgpack:"uploadedAt"`
}

// Reaction is one emoji row under a message. Count always equals
// len(Users) and a user appears at most once.
type Reaction struct {
	Emoji string   `json:"emoji" msgpack:"emoji"`
	Count int      `json:"count" msgpack:"count"`
	Users []string `json:"users" msgpack:"users"`
}

// Message represents a chat message. Timestamps are ISO-8601 strings as
// produced by the server; they sort lexicographically.
type Message struct {
	ID        string      `json:"id" msgpack:"id"`
	ChannelID string      `json:"channel_id" msgpack:"channelId"`
	UserID    string      `json:"user_id" msgpack:"userId"`
	Username  string      `json:"username" msgpack:"username"`
	Content   string      `json:"content" msgpack:"content"`
	Type      MessageType `json:"type" msgpack:"type"`
	File      *FileRef    `json:"file,omitempty" msgpack:"file"`
	Timestamp string      `json:"timestamp" msgpack:"timestamp"`
	Edited    bool        `json:"edited,omitempty" msgpack:"edited"`
	EditedAt  string      `json:"editedAt,omitempty" msgpack:"editedAt"`
	Reactions []Reaction  `json:"reactions,omitempty" msgpack:"reactions"`
}

// WithContent returns a copy with new content marked as edited.
// The receiver is never mutated; store snapshots stay immutable.
func (m Message) WithContent(content, editedAt string) Message {
	m.Content = content
	m.Edited = true
	m.EditedAt = editedAt
	m.Reactions = cloneReactions(m.Reactions)
	return m
}

// WithReaction returns a copy with userID's vote added under emoji.
// Adding an existing vote is a no-op.
func (m Message) WithReaction(emoji, userID string) Message {
	reactions := cloneReactions(m.Reactions)
	for i, r := range reactions {
		if r.Emoji != emoji {
			continue
		}
		for _, u := range r.Users {
			if u == userID {
				m.Reactions = reactions
				return m
			}
		}
		reactions[i].Users = append(reactions[i].Users, userID)
		reactions[i].Count = len(reactions[i].Users)
		m.Reactions = reactions
		return m
	}
	reactions = append(reactions, Reaction{Emoji: emoji, Count: 1, Users: []string{userID}})
	m.Reactions = reactions
	return m
}

// WithoutReaction returns a copy with userID's vote removed under emoji.
// A reaction whose last vote is removed disappears entirely.
func (m Message) WithoutReaction(emoji, userID string) Message {
	reactions := cloneReactions(m.Reactions)
	out := reactions[:0]
	for _, r := range reactions {
		if r.Emoji == emoji {
			users := make([]string, 0, len(r.Users))
			for _, u := range r.Users {
				if u != userID {
					users = append(users, u)
				}
			}
			if len(users) == 0 {
				continue
			}
			r.Users = users
			r.Count = len(users)
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		out = nil
	}
	m.Reactions = out
	return m
}

func cloneReactions(reactions []Reaction) []Reaction {
	if reactions == nil {
		return nil
	}
	out := make([]Reaction, len(reactions))
	for i, r := range reactions {
		users := make([]string, len(r.Users))
		copy(users, r.Users)
		r.Users = users
		out[i] = r
	}
	return out
}

// MessageDraft is the client-authored body of a send. The server assigns
// id and timestamp and returns the persisted message.
type MessageDraft struct {
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
	File    *FileRef    `json:"file,omitempty"`
}

type TransportKind string

const (
	TransportSocket  TransportKind = "socket"
	TransportPolling TransportKind = "polling"
)

// ConnectionState is the single process-wide connection value.
type ConnectionState struct {
	Connected bool          `json:"connected"`
	Transport TransportKind `json:"transport,omitempty"`
}
