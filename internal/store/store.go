package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nord/internal/models"
	"nord/internal/transport"
	"nord/internal/upload"

	"github.com/c-pro/geche"
)

var (
	ErrAlreadyConnected = errors.New("session already connected")
	ErrConnectInFlight  = errors.New("connect already in flight")
	ErrNotConnected     = errors.New("not connected")
)

// socketTransport is the push transport surface the store drives.
// *transport.Client satisfies it; tests plug in a fake.
type socketTransport interface {
	Connect(ctx context.Context, user models.User) error
	Disconnect()
	Events() *transport.Events
	JoinChannel(channelID string)
	LeaveChannel(channelID string)
	SendMessage(channelID string, draft models.MessageDraft, user models.User)
	StartTyping(channelID string)
	StopTyping(channelID string)
}

// pollingAPI is the request/response surface used in fallback mode.
type pollingAPI interface {
	GetMessages(ctx context.Context, channelID string) ([]models.Message, error)
	SendMessage(ctx context.Context, channelID string, draft models.MessageDraft, user models.User) (models.Message, error)
}

type poller interface {
	Start(channelID, watermark string, onNew func(models.Message))
	Stop()
}

type uploader interface {
	Upload(ctx context.Context, file upload.File, channelID string, user models.User) (models.FileRef, error)
}

// messageCache persists per-channel history between sessions. Best
// effort only; failures are logged and ignored.
type messageCache interface {
	SaveMessages(channelID string, messages []models.Message) error
	LoadMessages(channelID string) ([]models.Message, error)
}

type phase int

const (
	phaseDisconnected phase = iota
	phaseConnecting
	phaseConnected
)

const typingKeySep = "\x00"

// Options wires the store's collaborators. Socket may be nil when the
// deployment disables the push transport entirely.
type Options struct {
	Socket    socketTransport
	API       pollingAPI
	Poller    poller
	Uploads   uploader
	Cache     messageCache
	UseSocket bool
	// TypingTTL is the quiet period after which a typing entry decays
	// without an explicit stop signal.
	TypingTTL time.Duration
}

// Store owns the local view of the chat session: per-channel message
// lists, the typing map, presence and connection state. It applies
// inbound events from whichever transport is active and answers queries
// from the UI.
type Store struct {
	socket    socketTransport
	api       pollingAPI
	poller    poller
	uploads   uploader
	cache     messageCache
	useSocket bool

	mu        sync.RWMutex
	phase     phase
	transport models.TransportKind
	user      models.User
	messages  map[string][]models.Message
	seen      map[string]map[string]bool
	online    []models.User
	subs      []chan struct{}

	typing geche.Geche[string, models.User]

	now func() time.Time
}

func New(ctx context.Context, opts Options) *Store {
	ttl := opts.TypingTTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}

	s := &Store{
		socket:    opts.Socket,
		api:       opts.API,
		poller:    opts.Poller,
		uploads:   opts.Uploads,
		cache:     opts.Cache,
		useSocket: opts.UseSocket,
		messages:  make(map[string][]models.Message),
		seen:      make(map[string]map[string]bool),
		typing:    geche.NewMapTTLCache[string, models.User](ctx, ttl, ttl/2),
		now:       time.Now,
	}

	if s.socket != nil {
		ev := s.socket.Events()
		ev.OnNewMessage(func(e transport.NewMessage) {
			s.ApplyNewMessage(e.ChannelID, e.Message)
		})
		ev.OnChannelMessages(func(e transport.ChannelMessages) {
			s.applySnapshot(e.ChannelID, e.Messages)
		})
		ev.OnOnlineUsers(func(e transport.OnlineUsers) {
			s.applyOnlineUsers(e.Users)
		})
		ev.OnUserTyping(func(e transport.UserTyping) {
			s.ApplyTyping(e.User, e.ChannelID, e.Typing)
		})
		ev.OnServerError(func(e transport.ServerError) {
			slog.Warn("server error event", "message", e.Message)
		})
	}

	return s
}

// Connect establishes the session transport. If the socket transport is
// disabled by configuration the session goes straight to polling;
// otherwise a failed socket handshake falls back to polling. The
// fallback decision is made once per session and not retried.
func (s *Store) Connect(ctx context.Context, user models.User) error {
	s.mu.Lock()
	switch s.phase {
	case phaseConnecting:
		s.mu.Unlock()
		return ErrConnectInFlight
	case phaseConnected:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.phase = phaseConnecting
	s.user = user
	s.mu.Unlock()

	kind := models.TransportPolling
	if s.useSocket && s.socket != nil {
		if err := s.socket.Connect(ctx, user); err != nil {
			slog.Warn("socket connect failed, falling back to polling", "error", err)
		} else {
			kind = models.TransportSocket
		}
	}

	s.mu.Lock()
	s.phase = phaseConnected
	s.transport = kind
	s.mu.Unlock()
	s.notify()

	return nil
}

// Disconnect tears the session down. Idempotent.
func (s *Store) Disconnect() {
	s.mu.Lock()
	wasSocket := s.transport == models.TransportSocket
	s.phase = phaseDisconnected
	s.transport = ""
	s.mu.Unlock()

	if s.poller != nil {
		s.poller.Stop()
	}
	if wasSocket && s.socket != nil {
		s.socket.Disconnect()
	}
	s.notify()
}

// State returns the process-wide connection value.
func (s *Store) State() models.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ConnectionState{
		Connected: s.phase == phaseConnected,
		Transport: s.transport,
	}
}

// JoinChannel subscribes the session to a channel. In socket mode the
// server answers with a channel_messages snapshot; in polling mode the
// initial fetch loads history and a polling loop delivers the rest.
// Polling is single-channel: joining another channel stops the previous
// loop.
func (s *Store) JoinChannel(ctx context.Context, channelID string) error {
	s.mu.RLock()
	connected := s.phase == phaseConnected
	kind := s.transport
	s.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	s.loadCached(channelID)

	if kind == models.TransportSocket {
		s.socket.JoinChannel(channelID)
		return nil
	}

	messages, err := s.api.GetMessages(ctx, channelID)
	if err != nil {
		return err
	}
	s.applySnapshot(channelID, messages)

	watermark := ""
	if len(messages) > 0 {
		watermark = messages[len(messages)-1].Timestamp
	}
	s.poller.Start(channelID, watermark, func(msg models.Message) {
		s.ApplyNewMessage(channelID, msg)
	})

	return nil
}

// LeaveChannel unsubscribes. The cached message list is retained.
func (s *Store) LeaveChannel(channelID string) {
	s.mu.RLock()
	kind := s.transport
	s.mu.RUnlock()

	if kind == models.TransportSocket {
		s.socket.LeaveChannel(channelID)
		return
	}
	if s.poller != nil {
		s.poller.Stop()
	}
}

// SendMessage sends a draft over the active transport. In socket mode
// delivery is unacknowledged and the echo arrives as an event; in
// polling mode the server reply is authoritative and applied
// immediately, without waiting for a poll tick.
func (s *Store) SendMessage(ctx context.Context, channelID string, draft models.MessageDraft) error {
	s.mu.RLock()
	connected := s.phase == phaseConnected
	kind := s.transport
	user := s.user
	s.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	if kind == models.TransportSocket {
		s.socket.SendMessage(channelID, draft, user)
		return nil
	}

	msg, err := s.api.SendMessage(ctx, channelID, draft, user)
	if err != nil {
		return err
	}
	s.ApplyNewMessage(channelID, msg)
	return nil
}

// UploadFile validates and transmits an attachment, returning the
// FileRef to embed in a subsequent SendMessage. Upload and send are
// independent operations; a send failure after a successful upload
// leaves an orphaned file on the server.
func (s *Store) UploadFile(ctx context.Context, file upload.File, channelID string) (models.FileRef, error) {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	return s.uploads.Upload(ctx, file, channelID, user)
}

// ApplyNewMessage appends a message to the channel list, in arrival
// order. Messages already present by id are dropped so a polling reply
// and a later snapshot cannot double-apply.
func (s *Store) ApplyNewMessage(channelID string, msg models.Message) {
	s.mu.Lock()
	if msg.ID != "" {
		ids := s.seen[channelID]
		if ids == nil {
			ids = make(map[string]bool)
			s.seen[channelID] = ids
		}
		if ids[msg.ID] {
			s.mu.Unlock()
			return
		}
		ids[msg.ID] = true
	}
	s.messages[channelID] = append(s.messages[channelID], msg)
	list := s.messages[channelID]
	s.mu.Unlock()

	s.persist(channelID, list)
	s.notify()
}

// applySnapshot replaces the channel's list wholesale, as delivered by
// the channel_messages event or the initial polling fetch.
func (s *Store) applySnapshot(channelID string, messages []models.Message) {
	if messages == nil {
		messages = []models.Message{}
	}

	s.mu.Lock()
	s.messages[channelID] = messages
	ids := make(map[string]bool, len(messages))
	for _, m := range messages {
		if m.ID != "" {
			ids[m.ID] = true
		}
	}
	s.seen[channelID] = ids
	s.mu.Unlock()

	s.persist(channelID, messages)
	s.notify()
}

// ApplyTyping sets or clears one entry in the channel's typing map.
// Entries also decay on their own after the quiet period, covering
// peers that never send an explicit stop.
func (s *Store) ApplyTyping(user models.User, channelID string, isTyping bool) {
	key := channelID + typingKeySep + user.ID
	if isTyping {
		s.typing.Set(key, user)
	} else {
		_ = s.typing.Del(key)
	}
	s.notify()
}

// ChannelMessages returns the current snapshot for a channel. Unknown
// or unloaded channels yield an empty slice, never an error.
func (s *Store) ChannelMessages(channelID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[channelID]
	out := make([]models.Message, len(list))
	copy(out, list)
	return out
}

// TypingUsers returns who is currently typing in a channel, in
// arbitrary order.
func (s *Store) TypingUsers(channelID string) []models.User {
	prefix := channelID + typingKeySep
	var users []models.User
	for key, user := range s.typing.Snapshot() {
		if strings.HasPrefix(key, prefix) {
			users = append(users, user)
		}
	}
	return users
}

// OnlineUsers returns the latest presence snapshot.
func (s *Store) OnlineUsers() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, len(s.online))
	copy(out, s.online)
	return out
}

func (s *Store) applyOnlineUsers(users []models.User) {
	s.mu.Lock()
	s.online = users
	s.mu.Unlock()
	s.notify()
}

// StartTyping and StopTyping forward presence hints over the socket.
// No-ops in polling mode, which has no typing channel.
func (s *Store) StartTyping(channelID string) {
	if s.transportKind() == models.TransportSocket {
		s.socket.StartTyping(channelID)
	}
}

func (s *Store) StopTyping(channelID string) {
	if s.transportKind() == models.TransportSocket {
		s.socket.StopTyping(channelID)
	}
}

func (s *Store) transportKind() models.TransportKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport
}

// Subscribe returns a coalescing change signal for reactive consumers.
// One pending notification is retained; reads never block mutation.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := s.subs
	s.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) loadCached(channelID string) {
	if s.cache == nil {
		return
	}

	s.mu.RLock()
	_, present := s.messages[channelID]
	s.mu.RUnlock()
	if present {
		return
	}

	cached, err := s.cache.LoadMessages(channelID)
	if err != nil || len(cached) == 0 {
		return
	}

	s.mu.Lock()
	if _, present := s.messages[channelID]; !present {
		s.messages[channelID] = cached
		ids := make(map[string]bool, len(cached))
		for _, m := range cached {
			if m.ID != "" {
				ids[m.ID] = true
			}
		}
		s.seen[channelID] = ids
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) persist(channelID string, messages []models.Message) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveMessages(channelID, messages); err != nil {
		slog.Warn("message cache write failed", "channel_id", channelID, "error", err)
	}
}
