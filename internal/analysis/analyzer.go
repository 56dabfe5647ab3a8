// Package analysis implements continuous frequency-domain analysis of the
// capture stream for live visualization.
//
// A feed goroutine copies incoming frames into a ring of the most recent
// fftSize samples. Snapshot is reader-driven: the render clock calls it every
// frame, and the analyzer recomputes the FFT at most once per tick, so any
// number of readers share one computation without an extra timer.
package analysis

import (
	"math/cmplx"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/danakov/voxengine/pkg/audio"
)

const (
	defaultFFTSize = 2048
	defaultTick    = time.Second / 60
)

// Snapshot is one analysis result. Magnitudes holds the normalized magnitude
// per frequency bin; AverageLevel is their mean; PeakFrequencyHz is the
// center frequency of the loudest bin.
type Snapshot struct {
	AverageLevel    float64
	PeakFrequencyHz float64
	Magnitudes      []float64
}

// Option is a functional option for configuring an Analyzer.
type Option func(*Analyzer)

// WithFFTSize sets the analysis window length in samples. Must be a power of
// two. Default 2048.
func WithFFTSize(n int) Option {
	return func(a *Analyzer) { a.size = n }
}

// WithTick sets the minimum interval between FFT recomputations. Default is
// one 60 Hz render frame.
func WithTick(d time.Duration) Option {
	return func(a *Analyzer) { a.tick = d }
}

// WithClock replaces the wall clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// Analyzer consumes capture frames and serves spectral snapshots.
type Analyzer struct {
	size int
	tick time.Duration
	now  func() time.Time
	fft  *fourier.FFT

	mu         sync.Mutex
	ring       []float64
	head       int
	sampleRate int
	dirty      bool
	last       Snapshot
	lastAt     time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates an analyzer over the given capture channel and starts its feed
// goroutine. When the channel closes, the last-known snapshot keeps being
// served unchanged.
func New(frames <-chan audio.Frame, opts ...Option) *Analyzer {
	a := &Analyzer{
		size: defaultFFTSize,
		tick: defaultTick,
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	a.fft = fourier.NewFFT(a.size)
	a.ring = make([]float64, a.size)

	go a.feed(frames)
	return a
}

func (a *Analyzer) feed(frames <-chan audio.Frame) {
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			a.ingest(f)
		case <-a.done:
			return
		}
	}
}

// ingest appends a frame's samples to the ring, normalized to [-1, 1).
func (a *Analyzer) ingest(f audio.Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range f.Samples {
		a.ring[a.head] = float64(s) / 32768
		a.head = (a.head + 1) % a.size
	}
	if f.SampleRate > 0 {
		a.sampleRate = f.SampleRate
	}
	a.dirty = true
}

// Snapshot returns the current spectrum. If at least one tick elapsed since
// the last computation and new samples arrived, the FFT is recomputed;
// otherwise the cached snapshot is returned. The returned Magnitudes slice is
// a copy the caller may keep.
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.dirty && (a.lastAt.IsZero() || now.Sub(a.lastAt) >= a.tick) {
		a.last = a.compute()
		a.lastAt = now
		a.dirty = false
	}

	out := a.last
	out.Magnitudes = make([]float64, len(a.last.Magnitudes))
	copy(out.Magnitudes, a.last.Magnitudes)
	return out
}

// compute runs one windowed FFT over the ring. Callers hold a.mu.
func (a *Analyzer) compute() Snapshot {
	// Unroll the ring into time order, oldest first, then window it.
	seq := make([]float64, a.size)
	for i := range a.size {
		seq[i] = a.ring[(a.head+i)%a.size]
	}
	window.Hann(seq)

	coeffs := a.fft.Coefficients(nil, seq)
	mags := make([]float64, len(coeffs))

	var sum float64
	peak := 0
	for i, c := range coeffs {
		m := cmplx.Abs(c) / float64(a.size)
		mags[i] = m
		sum += m
		if m > mags[peak] {
			peak = i
		}
	}

	snap := Snapshot{Magnitudes: mags}
	if len(mags) > 0 {
		snap.AverageLevel = sum / float64(len(mags))
	}
	if a.sampleRate > 0 && mags[peak] > 0 {
		snap.PeakFrequencyHz = a.fft.Freq(peak) * float64(a.sampleRate)
	}
	return snap
}

// Close stops the feed goroutine. Snapshot keeps returning the last result.
// Idempotent.
func (a *Analyzer) Close() error {
	a.closeOnce.Do(func() { close(a.done) })
	return nil
}
