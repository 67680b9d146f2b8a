package channels

import (
	"errors"
	"sort"
	"sync"
	"time"

	"nord/internal/models"

	"github.com/google/uuid"
)

var (
	ErrLastChannel = errors.New("cannot delete the last remaining channel")
	ErrNotFound    = errors.New("channel not found")
)

// Defaults are seeded on first run, before the user has created
// anything of their own.
var Defaults = []models.Channel{
	{ID: "general", Name: "general", Type: "text", Description: "General discussion"},
	{ID: "random", Name: "random", Type: "text", Description: "Random conversations"},
	{ID: "help", Name: "help", Type: "text", Description: "Get help and support"},
}

type persistence interface {
	UpsertChannel(channel models.Channel) error
	ListChannels() ([]models.Channel, error)
	DeleteChannel(channelID string) error
}

// Store holds the channel list and the active selection. Channels are
// immutable after creation except for name and description edits.
type Store struct {
	db persistence

	mu       sync.RWMutex
	channels map[string]models.Channel
	order    []string
	activeID string

	now func() time.Time
}

func NewStore(db persistence) (*Store, error) {
	s := &Store{
		db:       db,
		channels: make(map[string]models.Channel),
		now:      time.Now,
	}

	stored, err := db.ListChannels()
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		for _, ch := range Defaults {
			ch.CreatedAt = s.now().UTC().Format(time.RFC3339)
			if err := db.UpsertChannel(ch); err != nil {
				return nil, err
			}
			stored = append(stored, ch)
		}
	}

	sort.Slice(stored, func(i, j int) bool {
		return stored[i].CreatedAt < stored[j].CreatedAt
	})
	for _, ch := range stored {
		s.channels[ch.ID] = ch
		s.order = append(s.order, ch.ID)
	}
	s.activeID = s.order[0]

	return s, nil
}

// List returns channels in creation order.
func (s *Store) List() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.channels[id])
	}
	return out
}

func (s *Store) Get(channelID string) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	return ch, ok
}

// Create adds a channel with a generated id.
func (s *Store) Create(name, description string) (models.Channel, error) {
	channel := models.Channel{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        "text",
		Description: description,
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
	}

	if err := s.db.UpsertChannel(channel); err != nil {
		return models.Channel{}, err
	}

	s.mu.Lock()
	s.channels[channel.ID] = channel
	s.order = append(s.order, channel.ID)
	s.mu.Unlock()

	return channel, nil
}

// Update edits name and/or description; empty arguments leave the
// field unchanged.
func (s *Store) Update(channelID, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	if name != "" {
		channel.Name = name
	}
	if description != "" {
		channel.Description = description
	}

	// Persist first; a failed write must not leave memory ahead of disk.
	if err := s.db.UpsertChannel(channel); err != nil {
		return err
	}
	s.channels[channelID] = channel
	return nil
}

// Delete removes a channel. The last remaining channel cannot be
// deleted; the active selection moves to the first survivor.
func (s *Store) Delete(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[channelID]; !ok {
		return ErrNotFound
	}
	if len(s.order) <= 1 {
		return ErrLastChannel
	}

	if err := s.db.DeleteChannel(channelID); err != nil {
		return err
	}

	delete(s.channels, channelID)
	kept := s.order[:0]
	for _, id := range s.order {
		if id != channelID {
			kept = append(kept, id)
		}
	}
	s.order = kept
	if s.activeID == channelID {
		s.activeID = s.order[0]
	}
	return nil
}

// Active returns the currently selected channel.
func (s *Store) Active() models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[s.activeID]
}

// SetActive switches the selection; unknown ids are ignored.
func (s *Store) SetActive(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return false
	}
	s.activeID = channelID
	return true
}
