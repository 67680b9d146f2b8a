package store

import (
	"context"
	"testing"
	"time"
)

func typingFixture(t *testing.T, quiet time.Duration) (*fakeSocket, *TypingEmitter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := newFakeSocket()
	s := New(ctx, Options{Socket: socket, UseSocket: true})
	if err := s.Connect(ctx, localUser()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return socket, NewTypingEmitter(s, quiet)
}

func (f *fakeSocket) typingCounts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.typingOn), len(f.typingOff)
}

func TestTypingEmitter_Burst(t *testing.T) {
	socket, e := typingFixture(t, 30*time.Millisecond)

	// A burst of keystrokes emits a single start.
	e.Keystroke("general")
	e.Keystroke("general")
	e.Keystroke("general")

	starts, stops := socket.typingCounts()
	if starts != 1 {
		t.Fatalf("Expected one typing_start per burst, got %d", starts)
	}
	if stops != 0 {
		t.Fatalf("Premature typing_stop: %d", stops)
	}

	// After the quiet period the stop fires on its own.
	deadline := time.After(time.Second)
	for {
		if _, stops := socket.typingCounts(); stops == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("typing_stop never fired after the quiet period")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The next keystroke opens a new burst.
	e.Keystroke("general")
	if starts, _ := socket.typingCounts(); starts != 2 {
		t.Errorf("Expected a new typing_start, got %d", starts)
	}
}

func TestTypingEmitter_Flush(t *testing.T) {
	socket, e := typingFixture(t, time.Hour)

	e.Keystroke("general")
	e.Flush("general")

	starts, stops := socket.typingCounts()
	if starts != 1 || stops != 1 {
		t.Fatalf("Expected start and immediate stop, got %d/%d", starts, stops)
	}

	// Flushing without an active burst does nothing.
	e.Flush("general")
	if _, stops := socket.typingCounts(); stops != 1 {
		t.Errorf("Flush without a burst emitted typing_stop")
	}
}

func TestTypingEmitter_PerChannel(t *testing.T) {
	socket, e := typingFixture(t, time.Hour)

	e.Keystroke("general")
	e.Keystroke("random")

	socket.mu.Lock()
	on := append([]string(nil), socket.typingOn...)
	socket.mu.Unlock()
	if len(on) != 2 || on[0] != "general" || on[1] != "random" {
		t.Fatalf("Expected independent bursts per channel, got %v", on)
	}

	e.Flush("general")
	socket.mu.Lock()
	off := append([]string(nil), socket.typingOff...)
	socket.mu.Unlock()
	if len(off) != 1 || off[0] != "general" {
		t.Errorf("Flush crossed channels: %v", off)
	}
}
