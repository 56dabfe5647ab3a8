// Package mock provides in-memory implementations of the [audio.CaptureSource]
// and [audio.Sink] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record method calls so tests can
// assert on call counts, and they expose exported fields that the test can set
// to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/danakov/voxengine/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.CaptureSource = (*CaptureSource)(nil)
	_ audio.Sink          = (*Sink)(nil)
)

// ─── CaptureSource ────────────────────────────────────────────────────────────

// CaptureSource is a mock [audio.CaptureSource] whose frames the test pushes
// via [CaptureSource.Emit].
type CaptureSource struct {
	mu sync.Mutex

	// StartError is returned by Start when non-nil.
	StartError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	frames  chan audio.Frame
	started bool
}

// Start implements [audio.CaptureSource]. Returns the same channel on every
// call while started.
func (c *CaptureSource) Start(_ context.Context) (<-chan audio.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStart++
	if c.StartError != nil {
		return nil, c.StartError
	}
	if !c.started {
		c.frames = make(chan audio.Frame, 64)
		c.started = true
	}
	return c.frames, nil
}

// Stop implements [audio.CaptureSource]. Closes the frame channel; idempotent.
func (c *CaptureSource) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStop++
	if c.started {
		close(c.frames)
		c.started = false
	}
	return nil
}

// Emit pushes a frame to the capture channel. No-op when the source is not
// started or the buffer is full (mirrors a dropped tick).
func (c *CaptureSource) Emit(f audio.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	select {
	case c.frames <- f:
	default:
	}
}

// Started reports whether the source currently holds an open stream.
func (c *CaptureSource) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock [audio.Sink] that records every frame written to it.
type Sink struct {
	mu sync.Mutex

	// WriteError is returned by Write when non-nil.
	WriteError error

	// Written holds every frame passed to Write, in order.
	Written []audio.Frame

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Write implements [audio.Sink].
func (s *Sink) Write(f audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteError != nil {
		return s.WriteError
	}
	s.Written = append(s.Written, f)
	return nil
}

// Close implements [audio.Sink]. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// WrittenFrames returns a snapshot copy of the frames written so far.
func (s *Sink) WrittenFrames() []audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Frame, len(s.Written))
	copy(out, s.Written)
	return out
}
