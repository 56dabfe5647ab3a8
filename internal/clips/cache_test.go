package clips_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danakov/voxengine/internal/clips"
	"github.com/danakov/voxengine/pkg/audio"
	audiomock "github.com/danakov/voxengine/pkg/audio/mock"
	ttsmock "github.com/danakov/voxengine/pkg/provider/tts/mock"
)

func TestPreload_SequentialAndSkipsPresent(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{}
	sink := &audiomock.Sink{}
	c := clips.New(synth, sink, "Kore")

	keys := []string{"hello", "goodbye", "one moment"}
	c.Preload(context.Background(), keys)

	if got := c.LoadedCount(); got != 3 {
		t.Fatalf("LoadedCount = %d; want 3", got)
	}
	for _, k := range keys {
		if got := synth.Calls(k); got != 1 {
			t.Errorf("Calls(%q) = %d; want 1", k, got)
		}
	}

	// A second preload of an overlapping set never re-synthesizes.
	c.Preload(context.Background(), []string{"hello", "new phrase"})
	if got := synth.Calls("hello"); got != 1 {
		t.Errorf("Calls(hello) after second preload = %d; want 1", got)
	}
	if got := c.LoadedCount(); got != 4 {
		t.Errorf("LoadedCount = %d; want 4", got)
	}
}

func TestPreload_FailedKeyIsSkipped(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{
		ErrFor: map[string]error{"broken": errors.New("quota")},
	}
	c := clips.New(synth, &audiomock.Sink{}, "Kore")

	c.Preload(context.Background(), []string{"ok1", "broken", "ok2"})

	if got := c.LoadedCount(); got != 2 {
		t.Errorf("LoadedCount = %d; want 2 (failure skipped)", got)
	}
	if got := synth.Calls("ok2"); got != 1 {
		t.Errorf("keys after the failing one must still load; Calls(ok2) = %d", got)
	}
}

func TestFill_WriteOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{Delay: 10 * time.Millisecond}
	c := clips.New(synth, &audiomock.Sink{}, "Kore")

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			c.Preload(context.Background(), []string{"race me"})
		})
	}
	wg.Wait()

	if got := synth.Calls("race me"); got != 1 {
		t.Errorf("Calls = %d; want exactly 1 synthesis for concurrent fills", got)
	}
	if got := c.LoadedCount(); got != 1 {
		t.Errorf("LoadedCount = %d; want 1", got)
	}
}

func TestPlay_HitWritesCachedFrame(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{}
	sink := &audiomock.Sink{}
	c := clips.New(synth, sink, "Kore")

	c.Preload(context.Background(), []string{"hello"})
	if err := c.Play(context.Background(), "hello"); err != nil {
		t.Fatalf("Play: %v", err)
	}

	frames := sink.WrittenFrames()
	if len(frames) != 1 {
		t.Fatalf("sink received %d frames; want 1", len(frames))
	}
	if got := synth.Calls("hello"); got != 1 {
		t.Errorf("Calls = %d; a hit must not re-synthesize", got)
	}
}

func TestPlay_MissSynthesizesAndBackfills(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{}
	sink := &audiomock.Sink{}
	c := clips.New(synth, sink, "Kore")

	if err := c.Play(context.Background(), "surprise"); err != nil {
		t.Fatalf("Play on miss: %v", err)
	}
	if got := c.LoadedCount(); got != 1 {
		t.Errorf("LoadedCount = %d; want 1 (backfilled)", got)
	}

	// The backfilled entry serves the second play without synthesis.
	if err := c.Play(context.Background(), "surprise"); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	if got := synth.Calls("surprise"); got != 1 {
		t.Errorf("Calls = %d; want 1 after backfill", got)
	}
	if got := len(sink.WrittenFrames()); got != 2 {
		t.Errorf("sink received %d frames; want 2", got)
	}
}

// gateSink blocks Write until released.
type gateSink struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateSink) Write(audio.Frame) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func (g *gateSink) Close() error { return nil }

func TestPlay_BusyReturnsErrClipBusy(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{}
	sink := &gateSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := clips.New(synth, sink, "Kore")
	c.Preload(context.Background(), []string{"long clip"})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Play(context.Background(), "long clip") }()

	select {
	case <-sink.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("first Play never reached the sink")
	}

	if err := c.Play(context.Background(), "long clip"); !errors.Is(err, clips.ErrClipBusy) {
		t.Errorf("concurrent Play = %v; want ErrClipBusy", err)
	}

	close(sink.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first Play: %v", err)
	}

	// The busy flag clears once playback ends.
	if err := c.Play(context.Background(), "long clip"); err != nil {
		t.Errorf("Play after playback ended: %v", err)
	}
}

func TestPlay_FailedFallbackClearsBusy(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{
		ErrFor: map[string]error{"cursed": errors.New("synthesis failed")},
	}
	c := clips.New(synth, &audiomock.Sink{}, "Kore")

	if err := c.Play(context.Background(), "cursed"); err == nil {
		t.Fatal("Play should surface the synthesis error")
	}

	// A failed fallback must not leave the cache stuck busy.
	if err := c.Play(context.Background(), "fine"); err != nil {
		t.Errorf("Play after failed fallback: %v", err)
	}
}
