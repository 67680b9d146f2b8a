package storage

import (
	"fmt"
	"time"

	"nord/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketIdentity = []byte("identity")
	bucketChannels = []byte("channels")
	bucketMessages = []byte("messages")
)

// BboltStorage is the local cache behind the client: identity, channel
// list and per-channel message history. It is a convenience cache, not
// a durable store; the server remains the source of truth for messages.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketIdentity); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketChannels); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveIdentity stores the local user identity.
func (s *BboltStorage) SaveIdentity(user models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdentity)
		dbUser := &DBIdentity{
			ID:        user.ID,
			Username:  user.Username,
			Avatar:    user.Avatar,
			Status:    string(user.Status),
			CreatedAt: user.CreatedAt,
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

// LoadIdentity returns the stored identity, or models.ErrNotFound when
// none has been created yet.
func (s *BboltStorage) LoadIdentity() (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIdentity).Get(identityKey)
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBIdentity
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = models.User{
			ID:        dbUser.ID,
			Username:  dbUser.Username,
			Avatar:    dbUser.Avatar,
			Status:    models.UserStatus(dbUser.Status),
			CreatedAt: dbUser.CreatedAt,
		}
		return nil
	})
	return user, err
}

// UpsertChannel saves a channel to the local list.
func (s *BboltStorage) UpsertChannel(channel models.Channel) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		dbChannel := &DBChannel{
			ID:          channel.ID,
			Name:        channel.Name,
			Type:        channel.Type,
			Description: channel.Description,
			CreatedAt:   channel.CreatedAt,
		}
		data, err := dbChannel.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbChannel.Key(), data)
	})
}

// ListChannels returns all locally known channels.
func (s *BboltStorage) ListChannels() ([]models.Channel, error) {
	var channels []models.Channel
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		return b.ForEach(func(k, v []byte) error {
			var dbChannel DBChannel
			if err := dbChannel.UnmarshalBinary(v); err != nil {
				return err
			}
			channels = append(channels, models.Channel{
				ID:          dbChannel.ID,
				Name:        dbChannel.Name,
				Type:        dbChannel.Type,
				Description: dbChannel.Description,
				CreatedAt:   dbChannel.CreatedAt,
			})
			return nil
		})
	})
	return channels, err
}

// DeleteChannel removes a channel and its cached history.
func (s *BboltStorage) DeleteChannel(channelID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketChannels).Delete([]byte(channelID)); err != nil {
			return err
		}
		return tx.Bucket(bucketMessages).Delete([]byte(channelID))
	})
}

// SaveMessages replaces the cached history for a channel.
func (s *BboltStorage) SaveMessages(channelID string, messages []models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		list := &DBMessageList{ChannelID: channelID, Messages: messages}
		data, err := list.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal messages: %w", err)
		}
		return b.Put(list.Key(), data)
	})
}

// LoadMessages returns the cached history for a channel; empty when the
// channel has never been cached.
func (s *BboltStorage) LoadMessages(channelID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMessages).Get([]byte(channelID))
		if data == nil {
			return nil
		}
		var list DBMessageList
		if err := list.UnmarshalBinary(data); err != nil {
			return err
		}
		messages = list.Messages
		return nil
	})
	return messages, err
}
