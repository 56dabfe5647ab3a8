// Package clips maintains a pre-fetched in-memory cache of short synthesized
// voice clips for near-instant on-demand playback.
//
// Keys are the exact source texts. The vocabulary is fixed and small, so
// entries live for the process lifetime with no eviction. Clip playback uses
// its own sink path and never touches the live playback clock.
package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danakov/voxengine/internal/observe"
	"github.com/danakov/voxengine/pkg/audio"
	"github.com/danakov/voxengine/pkg/provider/tts"
)

// ErrClipBusy is returned by Play while another clip is playing. Clips are
// never queued.
var ErrClipBusy = errors.New("clips: a clip is already playing")

// Option is a functional option for configuring a Cache.
type Option func(*Cache)

// WithMetrics wires the cache's counters and the synthesis latency histogram.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// Cache synthesizes and stores voice clips, one decoded 24 kHz frame per key.
type Cache struct {
	synth   tts.Synthesizer
	sink    audio.Sink
	voice   string
	metrics *observe.Metrics

	mu       sync.Mutex
	entries  map[string]audio.Frame
	inflight map[string]chan struct{}
	playing  bool
}

// New creates an empty cache synthesizing with the given voice.
func New(synth tts.Synthesizer, sink audio.Sink, voice string, opts ...Option) *Cache {
	c := &Cache{
		synth:    synth,
		sink:     sink,
		voice:    voice,
		entries:  make(map[string]audio.Frame),
		inflight: make(map[string]chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Preload fills the cache strictly sequentially, in key order. Keys already
// present are skipped; a key whose synthesis fails is logged and skipped so
// one bad key never blocks the rest. Returns early when ctx is cancelled.
func (c *Cache) Preload(ctx context.Context, keys []string) {
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.fill(ctx, key); err != nil {
			slog.Warn("clip preload failed", "key", key, "err", err)
		}
	}
}

// LoadedCount reports how many clips are cached. Exposes preload progress.
func (c *Cache) LoadedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Play plays the clip for key. A cache hit plays immediately; a miss
// synthesizes on demand, backfills the cache, then plays. Only one clip may
// play at a time: a Play while busy returns ErrClipBusy.
func (c *Cache) Play(ctx context.Context, key string) error {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordClipRequest(ctx, "busy")
		}
		return ErrClipBusy
	}
	c.playing = true
	frame, hit := c.entries[key]
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
	}()

	if c.metrics != nil {
		if hit {
			c.metrics.RecordClipRequest(ctx, "hit")
		} else {
			c.metrics.RecordClipRequest(ctx, "miss")
		}
	}

	if !hit {
		var err error
		frame, err = c.fill(ctx, key)
		if err != nil {
			return fmt.Errorf("clips: play %q: %w", key, err)
		}
	}

	if err := c.sink.Write(frame); err != nil {
		return fmt.Errorf("clips: play %q: %w", key, err)
	}
	return nil
}

// fill returns the cached frame for key, synthesizing it at most once. A
// concurrent fill of the same key waits for the winner instead of issuing a
// duplicate synthesis.
func (c *Cache) fill(ctx context.Context, key string) (audio.Frame, error) {
	var mark chan struct{}
	for {
		c.mu.Lock()
		if f, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return f, nil
		}
		wait, ok := c.inflight[key]
		if !ok {
			mark = make(chan struct{})
			c.inflight[key] = mark
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()

		select {
		case <-wait:
			// Winner finished; loop to pick up its result. If the winner
			// failed, this caller becomes the next one to try.
		case <-ctx.Done():
			return audio.Frame{}, ctx.Err()
		}
	}

	start := time.Now()
	frame, err := c.synth.Synthesize(ctx, key, c.voice)
	if c.metrics != nil {
		c.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	}

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		if existing, ok := c.entries[key]; ok {
			// Write-once: an earlier fill already committed; discard ours.
			frame = existing
		} else {
			c.entries[key] = frame
		}
	}
	c.mu.Unlock()
	close(mark) // closed after removal so waiters re-check
	if err != nil {
		return audio.Frame{}, err
	}
	return frame, nil
}
