package store

import (
	"sync"
	"time"
)

// TypingEmitter rate-limits outbound typing hints for the input field.
// The first keystroke emits typing_start; each further keystroke resets
// the quiet timer; once the timer fires without input, typing_stop is
// emitted. Flush stops immediately, for when the message is sent.
type TypingEmitter struct {
	store *Store
	quiet time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTypingEmitter(store *Store, quiet time.Duration) *TypingEmitter {
	return &TypingEmitter{
		store:  store,
		quiet:  quiet,
		timers: make(map[string]*time.Timer),
	}
}

// Keystroke signals input activity on a channel.
func (e *TypingEmitter) Keystroke(channelID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if timer, ok := e.timers[channelID]; ok {
		timer.Reset(e.quiet)
		return
	}

	e.store.StartTyping(channelID)
	e.timers[channelID] = time.AfterFunc(e.quiet, func() {
		e.expire(channelID)
	})
}

// Flush ends the typing state for a channel right away.
func (e *TypingEmitter) Flush(channelID string) {
	e.mu.Lock()
	timer, ok := e.timers[channelID]
	if ok {
		timer.Stop()
		delete(e.timers, channelID)
	}
	e.mu.Unlock()

	if ok {
		e.store.StopTyping(channelID)
	}
}

func (e *TypingEmitter) expire(channelID string) {
	e.mu.Lock()
	_, ok := e.timers[channelID]
	delete(e.timers, channelID)
	e.mu.Unlock()

	if ok {
		e.store.StopTyping(channelID)
	}
}
