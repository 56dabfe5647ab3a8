// Package live implements the streaming-session state machine that ties the
// capture stream, the live provider, and the playback scheduler together.
//
// Exactly one remote session exists at a time. Starting while a session is
// active is a toggle: the existing session is torn down fully before the new
// one connects. Outbound frame sends are fire-and-forget — a live audio
// instant cannot be retried, so a failed send is dropped, logged at debug,
// and counted.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danakov/voxengine/internal/observe"
	"github.com/danakov/voxengine/internal/playback"
	"github.com/danakov/voxengine/pkg/audio"
	provider "github.com/danakov/voxengine/pkg/provider/live"
)

// State is the streaming session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateStreaming
	StateInterrupted
	StateClosing
	StateClosed
	StateErrored
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateInterrupted:
		return "interrupted"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithStateFunc registers a callback invoked on every state change. The
// callback runs on the session's goroutines and must not block.
func WithStateFunc(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// WithMetrics wires the session's counters.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session drives one live conversation at a time.
type Session struct {
	provider  provider.Provider
	source    *audio.Broadcaster
	scheduler *playback.Scheduler
	cfg       provider.Config
	onState   func(State)
	metrics   *observe.Metrics

	// lifeMu serializes Start and Stop so a toggle can never produce two
	// concurrent remote sessions.
	lifeMu sync.Mutex

	mu     sync.Mutex
	state  State
	errVal error
	remote provider.Session
	unsub  func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle session. source supplies capture frames; its lifecycle
// (and the microphone's) belongs to the caller and survives session teardown.
func New(p provider.Provider, source *audio.Broadcaster, scheduler *playback.Scheduler, cfg provider.Config, opts ...Option) *Session {
	s := &Session{
		provider:  p,
		source:    source,
		scheduler: scheduler,
		cfg:       cfg,
		state:     StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start connects a new remote session. If one is already active it is torn
// down first (toggle semantics). On connect failure the session lands in
// StateErrored with the transport error recorded, and the capture stream is
// left untouched.
func (s *Session) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.teardown()
	s.setState(StateConnecting)

	remote, err := s.provider.Connect(ctx, s.cfg)
	if err != nil {
		err = fmt.Errorf("live: connect: %w", err)
		s.mu.Lock()
		s.errVal = err
		s.mu.Unlock()
		s.setState(StateErrored)
		return err
	}

	frames, unsub := s.source.Subscribe()
	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.remote = remote
	s.unsub = unsub
	s.cancel = cancel
	s.errVal = nil
	s.mu.Unlock()

	s.setState(StateOpen)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}

	s.wg.Add(2)
	go s.forwardLoop(runCtx, frames, remote)
	go s.eventLoop(runCtx, remote)
	return nil
}

// Stop tears the active session down. Idempotent and callable from any state,
// including before the first Start. The capture stream keeps running.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.teardown()
}

// teardown releases the remote handle, the subscription, and pending
// playback. Callers hold lifeMu.
func (s *Session) teardown() {
	s.mu.Lock()
	remote := s.remote
	unsub := s.unsub
	cancel := s.cancel
	s.remote = nil
	s.unsub = nil
	s.cancel = nil
	s.mu.Unlock()

	if remote == nil {
		// A remote-side close may still be finishing on the event goroutine;
		// wait it out so none of its writes land on a successor session.
		s.wg.Wait()
		return
	}

	s.setState(StateClosing)
	cancel()
	unsub()
	_ = remote.Close()
	s.wg.Wait()
	s.scheduler.Interrupt()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	s.setState(StateClosed)
}

// forwardLoop encodes capture frames and sends them fire-and-forget.
func (s *Session) forwardLoop(ctx context.Context, frames <-chan audio.Frame, remote provider.Session) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := remote.SendAudio(audio.EncodeFrame(f)); err != nil {
				slog.Debug("frame send dropped", "err", err)
				if s.metrics != nil {
					s.metrics.SendFailures.Add(ctx, 1)
				}
				continue
			}
			if s.metrics != nil {
				s.metrics.FramesSent.Add(ctx, 1)
			}
		}
	}
}

// eventLoop consumes remote events until the session ends.
func (s *Session) eventLoop(ctx context.Context, remote provider.Session) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-remote.Events():
			if !ok {
				s.remoteEnded(remote)
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev provider.Event) {
	switch ev.Kind {
	case provider.KindOpened:
		// Already Open after Connect; the ack needs no transition.

	case provider.KindAudio:
		s.scheduler.Enqueue(ev.Frame)
		if s.metrics != nil {
			s.metrics.ChunksReceived.Add(ctx, 1)
		}
		s.transition(func(cur State) (State, bool) {
			if cur == StateOpen || cur == StateInterrupted {
				return StateStreaming, true
			}
			return cur, false
		})

	case provider.KindInterrupted:
		// The user cut the model off: drop everything scheduled right away so
		// stale speech never plays over the new turn.
		s.scheduler.Interrupt()
		if s.metrics != nil {
			s.metrics.Interruptions.Add(ctx, 1)
		}
		s.transition(func(cur State) (State, bool) {
			if cur == StateOpen || cur == StateStreaming {
				return StateInterrupted, true
			}
			return cur, false
		})

	case provider.KindError:
		slog.Warn("live session error", "err", ev.Err)
		s.mu.Lock()
		s.errVal = ev.Err
		s.mu.Unlock()

	case provider.KindClosed:
		// The channel close that follows drives the teardown.
	}
}

// remoteEnded handles the provider closing the session from its side. The
// capture stream is left running so ambient analysis continues.
func (s *Session) remoteEnded(remote provider.Session) {
	s.mu.Lock()
	if s.remote != remote {
		// A local Stop already detached this session.
		s.mu.Unlock()
		return
	}
	unsub := s.unsub
	cancel := s.cancel
	s.remote = nil
	s.unsub = nil
	s.cancel = nil
	transportErr := remote.Err()
	if transportErr != nil {
		s.errVal = transportErr
	}
	failed := transportErr != nil
	s.mu.Unlock()

	s.setState(StateClosing)
	cancel()
	unsub()
	_ = remote.Close()
	s.scheduler.Interrupt()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	if failed {
		s.setState(StateErrored)
	} else {
		s.setState(StateClosed)
	}
}

// transition applies fn under the state lock and fires the callback when fn
// commits a change.
func (s *Session) transition(fn func(State) (State, bool)) {
	s.mu.Lock()
	next, changed := fn(s.state)
	if changed {
		s.state = next
	}
	s.mu.Unlock()
	if changed && s.onState != nil {
		s.onState(next)
	}
}

func (s *Session) setState(next State) {
	s.transition(func(State) (State, bool) { return next, true })
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the transport error that put the session into StateErrored,
// or the most recent non-fatal provider-reported error, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}
