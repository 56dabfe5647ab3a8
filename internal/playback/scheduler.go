// Package playback implements gapless scheduling of decoded audio frames onto
// an audio.Sink.
//
// Frames arrive from the network in bursts; the scheduler assigns each one a
// start time of max(nextStart, now) so that in-order arrivals play back to
// back with no overlap and no gap, while a burst after an idle period starts
// immediately instead of inheriting a stale future offset.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/danakov/voxengine/internal/observe"
	"github.com/danakov/voxengine/pkg/audio"
)

// sliceDuration bounds a single sink write. Device sinks block for the
// duration of the audio they are handed, so dispatching in short slices lets
// an interrupt truncate in-flight audio within one slice instead of waiting
// out a whole response chunk.
const sliceDuration = 50 * time.Millisecond

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock. Used in tests for deterministic
// scheduling.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTimer replaces the dispatch timer. Used in tests to fire immediately.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) { s.after = after }
}

// WithMetrics wires the scheduled-items gauge.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

type item struct {
	frame audio.Frame
	start time.Time
	gen   uint64
}

// Scheduler owns the playback clock and the set of scheduled items. A single
// dispatch goroutine sleeps until each item's start time and writes it to the
// sink.
type Scheduler struct {
	sink    audio.Sink
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
	metrics *observe.Metrics

	mu        sync.Mutex
	queue     []item
	nextStart time.Time
	epoch     time.Time
	active    int
	gen       uint64
	genCancel chan struct{}
	closed    bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a scheduler writing to sink and starts its dispatch goroutine.
func New(sink audio.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:      sink,
		now:       time.Now,
		after:     time.After,
		genCancel: make(chan struct{}),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.epoch = s.now()
	s.nextStart = s.epoch
	go s.dispatchLoop()
	return s
}

// Enqueue schedules one frame for playback. The start time is
// max(nextStart, now); nextStart advances by the frame's duration. No-op after
// Close.
func (s *Scheduler) Enqueue(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	now := s.now()
	start := s.nextStart
	if now.After(start) {
		start = now
	}
	s.nextStart = start.Add(f.Duration())

	s.queue = append(s.queue, item{frame: f, start: start, gen: s.gen})
	s.active++
	if s.metrics != nil {
		s.metrics.ScheduledItems.Add(context.Background(), 1)
	}
	s.signal()
}

// Interrupt synchronously discards every scheduled item, invalidates the
// in-flight one, and resets the playback clock to now. Speaking reports false
// immediately after Interrupt returns.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptLocked()
}

func (s *Scheduler) interruptLocked() {
	if s.metrics != nil && s.active > 0 {
		s.metrics.ScheduledItems.Add(context.Background(), -int64(s.active))
	}
	s.queue = nil
	s.active = 0
	s.gen++
	s.nextStart = s.now()
	close(s.genCancel)
	s.genCancel = make(chan struct{})
}

// Speaking reports whether any item is scheduled or currently playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

// Close interrupts pending playback and stops the dispatcher. Idempotent.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.interruptLocked()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

// signal wakes the dispatcher without blocking. Callers hold s.mu.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pop removes the head of the queue. The returned cancel channel belongs to
// the item's generation so a sleeping dispatcher wakes on Interrupt.
func (s *Scheduler) pop() (item, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return item{}, nil, false
	}
	it := s.queue[0]
	s.queue = s.queue[1:]
	return it, s.genCancel, true
}

// finish marks an item as done playing unless an interrupt superseded it.
func (s *Scheduler) finish(it item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.gen == s.gen && s.active > 0 {
		s.active--
		if s.metrics != nil {
			s.metrics.ScheduledItems.Add(context.Background(), -1)
		}
	}
}

// current reports whether the item's generation is still live.
func (s *Scheduler) current(it item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return it.gen == s.gen
}

func (s *Scheduler) dispatchLoop() {
	for {
		it, cancel, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		if d := it.start.Sub(s.now()); d > 0 {
			select {
			case <-s.after(d):
			case <-cancel:
				continue
			case <-s.done:
				return
			}
		}

		s.play(it)
	}
}

// play writes the item's frame to the sink in sliceDuration sub-frames,
// re-checking the generation between writes so an interrupt truncates
// in-flight audio within one slice. Each slice is stamped with its scheduled
// offset so sinks and tests can observe the playback timeline.
func (s *Scheduler) play(it item) {
	f := it.frame
	perSlice := f.SampleRate * f.Channels * int(sliceDuration/time.Millisecond) / 1000
	if perSlice <= 0 {
		perSlice = len(f.Samples)
	}

	for pos := 0; pos < len(f.Samples); pos += perSlice {
		if !s.current(it) {
			return
		}
		end := min(pos+perSlice, len(f.Samples))
		elapsed := time.Duration(pos) * time.Second / time.Duration(f.SampleRate*f.Channels)
		_ = s.sink.Write(audio.Frame{
			Samples:    f.Samples[pos:end],
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
			Timestamp:  it.start.Sub(s.epoch) + elapsed,
		})
	}
	s.finish(it)
}
