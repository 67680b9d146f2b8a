package transport

import (
	"log/slog"
	"sync"

	"nord/internal/models"
)

// Server-to-client event payloads. Field tags follow the wire contract.

type NewMessage struct {
	ChannelID string         `json:"channel_id"`
	Message   models.Message `json:"message"`
}

// ChannelMessages is the bulk snapshot sent after joining a channel.
// It replaces any locally held list for that channel.
type ChannelMessages struct {
	ChannelID string           `json:"channel_id"`
	Messages  []models.Message `json:"messages"`
}

// OnlineUsers is a full presence snapshot, not a delta.
type OnlineUsers struct {
	Users []models.User `json:"users"`
}

type UserTyping struct {
	User      models.User `json:"user"`
	ChannelID string      `json:"channel_id"`
	Typing    bool        `json:"typing"`
}

type ServerError struct {
	Message string `json:"message"`
}

type connectedAck struct {
	SID string `json:"sid"`
}

// Events is the typed listener registry. Registration is additive per
// event; listeners run synchronously on the read pump goroutine, so each
// physical event is delivered at most once and in receipt order. A panic
// in one listener does not prevent the others from running.
type Events struct {
	mu              sync.RWMutex
	newMessage      []func(NewMessage)
	channelMessages []func(ChannelMessages)
	onlineUsers     []func(OnlineUsers)
	userTyping      []func(UserTyping)
	serverError     []func(ServerError)
}

func (e *Events) OnNewMessage(fn func(NewMessage)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newMessage = append(e.newMessage, fn)
}

func (e *Events) OnChannelMessages(fn func(ChannelMessages)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channelMessages = append(e.channelMessages, fn)
}

func (e *Events) OnOnlineUsers(fn func(OnlineUsers)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onlineUsers = append(e.onlineUsers, fn)
}

func (e *Events) OnUserTyping(fn func(UserTyping)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userTyping = append(e.userTyping, fn)
}

func (e *Events) OnServerError(fn func(ServerError)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serverError = append(e.serverError, fn)
}

func (e *Events) EmitNewMessage(ev NewMessage) {
	e.mu.RLock()
	listeners := e.newMessage
	e.mu.RUnlock()
	for _, fn := range listeners {
		call(func() { fn(ev) })
	}
}

func (e *Events) EmitChannelMessages(ev ChannelMessages) {
	e.mu.RLock()
	listeners := e.channelMessages
	e.mu.RUnlock()
	for _, fn := range listeners {
		call(func() { fn(ev) })
	}
}

func (e *Events) EmitOnlineUsers(ev OnlineUsers) {
	e.mu.RLock()
	listeners := e.onlineUsers
	e.mu.RUnlock()
	for _, fn := range listeners {
		call(func() { fn(ev) })
	}
}

func (e *Events) EmitUserTyping(ev UserTyping) {
	e.mu.RLock()
	listeners := e.userTyping
	e.mu.RUnlock()
	for _, fn := range listeners {
		call(func() { fn(ev) })
	}
}

func (e *Events) EmitServerError(ev ServerError) {
	e.mu.RLock()
	listeners := e.serverError
	e.mu.RUnlock()
	for _, fn := range listeners {
		call(func() { fn(ev) })
	}
}

func call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "panic", r)
		}
	}()
	fn()
}
