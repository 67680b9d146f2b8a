package store

import (
	"time"

	"nord/internal/models"
)

// Local message mutations. These operate on the local view only; the
// wire contract has no edit/delete/reaction events, matching the
// reference client. Every update produces a fresh message value so
// snapshots handed to readers stay immutable.

// EditMessage replaces the content of a message authored by the local
// user and marks it edited. Messages by other users are untouched.
func (s *Store) EditMessage(messageID, content string) {
	editedAt := s.now().UTC().Format(time.RFC3339)
	changed := false

	s.mu.Lock()
	for channelID, list := range s.messages {
		for i, msg := range list {
			if msg.ID != messageID || msg.UserID != s.user.ID {
				continue
			}
			updated := make([]models.Message, len(list))
			copy(updated, list)
			updated[i] = msg.WithContent(content, editedAt)
			s.messages[channelID] = updated
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// DeleteMessage removes a message authored by the local user. The
// channel list is filtered, never reordered.
func (s *Store) DeleteMessage(messageID string) {
	changed := false

	s.mu.Lock()
	for channelID, list := range s.messages {
		kept := make([]models.Message, 0, len(list))
		for _, msg := range list {
			if msg.ID == messageID && msg.UserID == s.user.ID {
				changed = true
				delete(s.seen[channelID], messageID)
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) != len(list) {
			s.messages[channelID] = kept
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// AddReaction records the local user's vote under emoji. Voting twice
// on the same emoji is a no-op.
func (s *Store) AddReaction(messageID, emoji string) {
	s.updateMessage(messageID, func(msg models.Message) models.Message {
		return msg.WithReaction(emoji, s.user.ID)
	})
}

// RemoveReaction withdraws the local user's vote under emoji.
func (s *Store) RemoveReaction(messageID, emoji string) {
	s.updateMessage(messageID, func(msg models.Message) models.Message {
		return msg.WithoutReaction(emoji, s.user.ID)
	})
}

func (s *Store) updateMessage(messageID string, fn func(models.Message) models.Message) {
	changed := false

	s.mu.Lock()
	for channelID, list := range s.messages {
		for i, msg := range list {
			if msg.ID != messageID {
				continue
			}
			updated := make([]models.Message, len(list))
			copy(updated, list)
			updated[i] = fn(msg)
			s.messages[channelID] = updated
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}
