// Package mock provides a scripted in-memory implementation of the live
// provider interfaces for use in unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/danakov/voxengine/pkg/audio"
	"github.com/danakov/voxengine/pkg/provider/live"
)

// Compile-time interface assertions.
var (
	_ live.Provider = (*Provider)(nil)
	_ live.Session  = (*Session)(nil)
)

// Provider is a mock [live.Provider]. Each Connect returns a fresh Session
// and records it so tests can drive inbound events and inspect sent audio.
type Provider struct {
	mu sync.Mutex

	// ConnectError is returned by Connect when non-nil.
	ConnectError error

	// CallCountConnect records how many times Connect was called.
	CallCountConnect int

	sessions []*Session
}

// Connect implements [live.Provider].
func (p *Provider) Connect(_ context.Context, cfg live.Config) (live.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountConnect++
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	s := &Session{
		Config: cfg,
		events: make(chan live.Event, 64),
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns every session Connect has handed out, in order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// OpenSessions counts sessions that have not been closed. Toggle-safety tests
// assert this never exceeds one.
func (p *Provider) OpenSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.sessions {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// Session is a mock [live.Session] whose inbound events the test scripts via
// the Emit methods.
type Session struct {
	// Config is the configuration Connect was called with.
	Config live.Config

	// SendError is returned by SendAudio when non-nil (and the session is
	// still open).
	SendError error

	mu     sync.Mutex
	sent   []audio.EncodedChunk
	events chan live.Event
	errVal error
	closed bool
}

// SendAudio implements [live.Session]. Records the chunk.
func (s *Session) SendAudio(chunk audio.EncodedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return live.ErrSessionClosed
	}
	if s.SendError != nil {
		return s.SendError
	}
	s.sent = append(s.sent, chunk)
	return nil
}

// Events implements [live.Session].
func (s *Session) Events() <-chan live.Event { return s.events }

// Err implements [live.Session].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close implements [live.Session]. Closes the event channel; idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// Closed reports whether Close has been called (or EmitClosed ended the
// session).
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sent returns a snapshot of every chunk passed to SendAudio.
func (s *Session) Sent() []audio.EncodedChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.EncodedChunk, len(s.sent))
	copy(out, s.sent)
	return out
}

// Emit pushes an arbitrary event to the session's consumers. No-op after
// close.
func (s *Session) Emit(ev live.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// EmitOpened scripts the provider's setup acknowledgement.
func (s *Session) EmitOpened() { s.Emit(live.Event{Kind: live.KindOpened}) }

// EmitAudio scripts one inbound synthesized frame.
func (s *Session) EmitAudio(f audio.Frame) { s.Emit(live.Event{Kind: live.KindAudio, Frame: f}) }

// EmitInterrupted scripts a remote interruption.
func (s *Session) EmitInterrupted() { s.Emit(live.Event{Kind: live.KindInterrupted}) }

// EmitError scripts a non-fatal provider error.
func (s *Session) EmitError(err error) { s.Emit(live.Event{Kind: live.KindError, Err: err}) }

// EmitClosed scripts a remote shutdown: delivers KindClosed, records err as
// the terminating error, and closes the event channel.
func (s *Session) EmitClosed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.errVal = err
	s.events <- live.Event{Kind: live.KindClosed}
	s.closed = true
	close(s.events)
}
