package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"nord/internal/channels"
	"nord/internal/models"
	"nord/internal/store"
)

type memChannelDB struct {
	channels map[string]models.Channel
}

func newMemChannelDB() *memChannelDB {
	return &memChannelDB{channels: make(map[string]models.Channel)}
}

func (m *memChannelDB) UpsertChannel(channel models.Channel) error {
	m.channels[channel.ID] = channel
	return nil
}

func (m *memChannelDB) ListChannels() ([]models.Channel, error) {
	out := make([]models.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (m *memChannelDB) DeleteChannel(channelID string) error {
	delete(m.channels, channelID)
	return nil
}

func TestPending(t *testing.T) {
	messages := []models.Message{{ID: "m1"}, {ID: "m2"}}

	if got := pending(messages, 0); len(got) != 2 {
		t.Errorf("expected the full list unprinted, got %v", got)
	}
	if got := pending(messages, 2); len(got) != 0 {
		t.Errorf("expected nothing new, got %v", got)
	}

	// The list shrank below the saved index (local delete, or a smaller
	// snapshot replacing a cached history).
	if got := pending(messages[:1], 2); len(got) != 0 {
		t.Errorf("expected clamped empty suffix, got %v", got)
	}
	if got := pending(nil, 3); len(got) != 0 {
		t.Errorf("expected clamped empty suffix for empty list, got %v", got)
	}
}

func TestRenderLoop_SurvivesShrinkingList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := store.New(ctx, store.Options{})
	if err := sess.Connect(ctx, models.User{ID: "u1", Username: "CoolFox1"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	channelStore, err := channels.NewStore(newMemChannelDB())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if !channelStore.SetActive("general") {
		t.Fatal("general channel missing")
	}

	done := make(chan error, 1)
	go func() {
		done <- renderLoop(ctx, sess, channelStore)
	}()

	sess.ApplyNewMessage("general", models.Message{ID: "m1", UserID: "u1", Content: "a"})
	sess.ApplyNewMessage("general", models.Message{ID: "m2", UserID: "u1", Content: "b"})
	time.Sleep(100 * time.Millisecond)

	// Deleting drops the list below the loop's print index.
	sess.DeleteMessage("m1")
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("renderLoop returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("renderLoop did not exit on cancel")
	}
}
