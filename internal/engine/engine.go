// Package engine is the composition root of the audio pipeline. It owns the
// capture source, the spectral analyzer, the playback scheduler, the
// streaming session, and the clip cache, and exposes the mode entry points
// the UI boundary calls.
//
// Modes are independent: ambient analysis runs on its own, a conversation
// adds the live session on top, and clip playback needs neither.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/danakov/voxengine/internal/analysis"
	"github.com/danakov/voxengine/internal/clips"
	"github.com/danakov/voxengine/internal/live"
	"github.com/danakov/voxengine/internal/observe"
	"github.com/danakov/voxengine/internal/playback"
	"github.com/danakov/voxengine/pkg/audio"
	providerlive "github.com/danakov/voxengine/pkg/provider/live"
	"github.com/danakov/voxengine/pkg/provider/tts"
)

// Params carries the engine's collaborators. Capture, Sink, Live, and Synth
// are required.
type Params struct {
	Capture audio.CaptureSource
	Sink    audio.Sink
	Live    providerlive.Provider
	Synth   tts.Synthesizer

	// LiveConfig is passed to every live session.
	LiveConfig providerlive.Config

	// ClipVoice is the voice used for clip synthesis.
	ClipVoice string

	// FFTSize overrides the analyzer window length. Zero uses the default.
	FFTSize int

	// Metrics wires the pipeline counters. Nil disables them.
	Metrics *observe.Metrics

	// OnSessionState is forwarded to the streaming session. Optional.
	OnSessionState func(live.State)
}

// Engine wires the pipeline together. All lifecycle methods are safe for
// concurrent use and idempotent.
type Engine struct {
	capture audio.CaptureSource
	sink    audio.Sink
	fftSize int

	scheduler *playback.Scheduler
	cache     *clips.Cache

	liveProvider providerlive.Provider
	liveConfig   providerlive.Config
	metrics      *observe.Metrics
	onState      func(live.State)

	mu          sync.Mutex
	session     *live.Session
	broadcaster *audio.Broadcaster
	analyzer    *analysis.Analyzer
	ambient     bool
	closed      bool
}

// New assembles an engine. The scheduler and clip cache start immediately;
// the microphone stays untouched until StartAmbient or StartConversation.
func New(p Params) *Engine {
	e := &Engine{
		capture:      p.Capture,
		sink:         p.Sink,
		fftSize:      p.FFTSize,
		liveProvider: p.Live,
		liveConfig:   p.LiveConfig,
		metrics:      p.Metrics,
		onState:      p.OnSessionState,
	}

	var schedOpts []playback.Option
	if p.Metrics != nil {
		schedOpts = append(schedOpts, playback.WithMetrics(p.Metrics))
	}
	e.scheduler = playback.New(p.Sink, schedOpts...)

	var cacheOpts []clips.Option
	if p.Metrics != nil {
		cacheOpts = append(cacheOpts, clips.WithMetrics(p.Metrics))
	}
	e.cache = clips.New(p.Synth, p.Sink, p.ClipVoice, cacheOpts...)

	return e
}

// StartAmbient opens the microphone and starts spectral analysis. A
// permission or device failure is returned with its typed cause intact and
// leaves the engine not-started, so the caller can retry after the user
// grants access. Idempotent while running.
func (e *Engine) StartAmbient(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("engine: closed")
	}
	if e.ambient {
		return nil
	}

	frames, err := e.capture.Start(ctx)
	if err != nil {
		return fmt.Errorf("engine: start capture: %w", err)
	}

	e.broadcaster = audio.NewBroadcaster(frames)
	analyzerFrames, _ := e.broadcaster.Subscribe()

	var opts []analysis.Option
	if e.fftSize > 0 {
		opts = append(opts, analysis.WithFFTSize(e.fftSize))
	}
	e.analyzer = analysis.New(analyzerFrames, opts...)
	e.ambient = true
	return nil
}

// StartConversation starts (or toggles) the live session. Ambient analysis is
// brought up first if it is not running, since the session feeds on the same
// capture stream.
func (e *Engine) StartConversation(ctx context.Context) error {
	if err := e.StartAmbient(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	if e.session == nil {
		var opts []live.Option
		if e.metrics != nil {
			opts = append(opts, live.WithMetrics(e.metrics))
		}
		if e.onState != nil {
			opts = append(opts, live.WithStateFunc(e.onState))
		}
		e.session = live.New(e.liveProvider, e.broadcaster, e.scheduler, e.liveConfig, opts...)
	}
	session := e.session
	e.mu.Unlock()

	return session.Start(ctx)
}

// StopAmbient releases the microphone and the analyzer. An active
// conversation is stopped first, since it feeds on the same capture stream.
// Safe to call in any state; StartAmbient afterwards reopens the device, so
// a dead capture stream can be recovered with StopAmbient + StartAmbient.
func (e *Engine) StopAmbient() {
	e.mu.Lock()
	session := e.session
	analyzer := e.analyzer
	broadcaster := e.broadcaster
	// The session subscribes to this broadcaster; drop it so the next
	// conversation binds to the replacement capture stream.
	e.session = nil
	e.analyzer = nil
	e.broadcaster = nil
	e.ambient = false
	e.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	if analyzer != nil {
		_ = analyzer.Close()
	}
	_ = e.capture.Stop()
	if broadcaster != nil {
		broadcaster.Close()
	}
}

// StopConversation tears the live session down. Ambient analysis keeps
// running. Safe to call in any state.
func (e *Engine) StopConversation() {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session != nil {
		session.Stop()
	}
}

// PreloadClips fills the clip cache sequentially.
func (e *Engine) PreloadClips(ctx context.Context, keys []string) {
	e.cache.Preload(ctx, keys)
}

// PlayClip plays a cached clip, synthesizing on demand on a miss. Independent
// of ambient and conversation state.
func (e *Engine) PlayClip(ctx context.Context, key string) error {
	return e.cache.Play(ctx, key)
}

// ClipsLoaded reports clip preload progress.
func (e *Engine) ClipsLoaded() int {
	return e.cache.LoadedCount()
}

// Snapshot returns the current spectral snapshot, or a zero snapshot before
// ambient analysis has started.
func (e *Engine) Snapshot() analysis.Snapshot {
	e.mu.Lock()
	analyzer := e.analyzer
	e.mu.Unlock()
	if analyzer == nil {
		return analysis.Snapshot{}
	}
	return analyzer.Snapshot()
}

// AmbientRunning reports whether the microphone stream is open.
func (e *Engine) AmbientRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ambient
}

// Speaking reports whether live playback is scheduled or sounding.
func (e *Engine) Speaking() bool {
	return e.scheduler.Speaking()
}

// SessionState returns the live session state, or StateIdle before the first
// conversation.
func (e *Engine) SessionState() live.State {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session == nil {
		return live.StateIdle
	}
	return session.State()
}

// Close releases the microphone, the network handle, and pending playback.
// Idempotent; the individual stop paths are themselves idempotent, so a
// partially built engine closes cleanly too.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	session := e.session
	analyzer := e.analyzer
	broadcaster := e.broadcaster
	e.ambient = false
	e.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	if analyzer != nil {
		_ = analyzer.Close()
	}
	_ = e.capture.Stop()
	if broadcaster != nil {
		broadcaster.Close()
	}
	_ = e.scheduler.Close()
	return e.sink.Close()
}
