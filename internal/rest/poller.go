package rest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nord/internal/models"
)

// fetcher lets tests drive ticks without a live server.
type fetcher interface {
	GetMessages(ctx context.Context, channelID string) ([]models.Message, error)
}

// Poller delivers new messages for a single channel by periodic full
// fetches. At most one polling loop is active per Poller; starting a new
// one first cancels the previous, as an explicit transition.
//
// The watermark is the timestamp of the most recently applied message.
// ISO-8601 timestamps sort lexicographically, so a plain string compare
// computes the new suffix. Two messages sharing a timestamp can be
// missed or duplicated; known tolerance, not a correctness guarantee.
type Poller struct {
	fetch    fetcher
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPoller(client *Client, interval time.Duration) *Poller {
	return &Poller{fetch: client, interval: interval}
}

// Start begins polling channelID, invoking onNew once per new message in
// order. watermark seeds the last-seen timestamp: pass the timestamp of
// the newest message from the initial load, or empty for a channel with
// no history. Any previously active loop is stopped first.
func (p *Poller) Start(channelID, watermark string, onNew func(models.Message)) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx, channelID, watermark, onNew)
}

// Stop cancels the active loop. Idempotent; no-op when none is active.
// In-flight fetches are not aborted, but their results are disregarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) run(ctx context.Context, channelID, watermark string, onNew func(models.Message)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			watermark = p.tick(ctx, channelID, watermark, onNew)
		case <-ctx.Done():
			return
		}
	}
}

// tick fetches once and delivers the suffix newer than the watermark.
// Fetch errors are logged and skipped so the loop stays alive.
func (p *Poller) tick(ctx context.Context, channelID, watermark string, onNew func(models.Message)) string {
	messages, err := p.fetch.GetMessages(ctx, channelID)
	if err != nil {
		slog.Warn("poll tick failed", "channel_id", channelID, "error", err)
		return watermark
	}
	if ctx.Err() != nil {
		// Stopped while the fetch was in flight; drop the result.
		return watermark
	}

	for _, msg := range messages {
		if msg.Timestamp <= watermark && watermark != "" {
			continue
		}
		if watermark == "" && msg.Timestamp == "" {
			continue
		}
		onNew(msg)
		watermark = msg.Timestamp
	}

	return watermark
}
