package storage

import (
	"encoding"

	"nord/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBIdentity is the locally persisted user identity. There is exactly
// one per database, stored under a fixed key.
type DBIdentity struct {
	ID        string `msgpack:"id"`
	Username  string `msgpack:"username"`
	Avatar    string `msgpack:"avatar"`
	Status    string `msgpack:"status"`
	CreatedAt string `msgpack:"createdAt"`
}

var identityKey = []byte("me")

func (u *DBIdentity) Key() []byte {
	return identityKey
}

func (u *DBIdentity) MarshalBinary() (data []byte, err error) {
	type alias DBIdentity
	return msgpack.Marshal((*alias)(u))
}

func (u *DBIdentity) UnmarshalBinary(data []byte) error {
	type alias DBIdentity
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBChannel struct {
	ID          string `msgpack:"id"`
	Name        string `msgpack:"name"`
	Type        string `msgpack:"type"`
	Description string `msgpack:"description"`
	CreatedAt   string `msgpack:"createdAt"`
}

func (c *DBChannel) Key() []byte {
	return []byte(c.ID)
}

func (c *DBChannel) MarshalBinary() (data []byte, err error) {
	type alias DBChannel
	return msgpack.Marshal((*alias)(c))
}

func (c *DBChannel) UnmarshalBinary(data []byte) error {
	type alias DBChannel
	return msgpack.Unmarshal(data, (*alias)(c))
}

// DBMessageList is a whole channel history stored as one record; the
// cache is replaced wholesale on every write, mirroring how snapshots
// replace the in-memory list.
type DBMessageList struct {
	ChannelID string           `msgpack:"channelId"`
	Messages  []models.Message `msgpack:"messages"`
}

func (l *DBMessageList) Key() []byte {
	return []byte(l.ChannelID)
}

func (l *DBMessageList) MarshalBinary() (data []byte, err error) {
	type alias DBMessageList
	return msgpack.Marshal((*alias)(l))
}

func (l *DBMessageList) UnmarshalBinary(data []byte) error {
	type alias DBMessageList
	return msgpack.Unmarshal(data, (*alias)(l))
}
