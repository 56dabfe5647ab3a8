// Package device provides portaudio-backed implementations of
// [audio.CaptureSource] and [audio.Sink] for the default system microphone and
// speaker.
//
// The package initialises portaudio lazily on first use and keeps it
// initialised for the process lifetime; Stop/Close release the individual
// streams, not the library.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/danakov/voxengine/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.CaptureSource = (*Capture)(nil)
	_ audio.Sink          = (*Speaker)(nil)
)

var (
	initOnce sync.Once
	initErr  error
)

// ensureInit initialises portaudio exactly once.
func ensureInit() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// mapOpenError converts portaudio open failures onto the typed capture errors.
// Host APIs report a denied microphone permission as a device-open failure
// with an access-related message; everything else is a device problem.
func mapOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") || strings.Contains(msg, "access") {
		return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is an [audio.CaptureSource] backed by the default portaudio input
// device. It emits [audio.BlockSamples]-sized frames at [audio.InputFormat].
type Capture struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	frames  chan audio.Frame
	done    chan struct{}
	started bool
}

// NewCapture creates an unstarted capture source for the default microphone.
func NewCapture() *Capture {
	return &Capture{}
}

// Start implements [audio.CaptureSource]. Opens the default input device at
// 16 kHz mono and starts the read loop. A second Start while running returns
// the existing frame channel without opening another device stream.
func (c *Capture) Start(ctx context.Context) (<-chan audio.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return c.frames, nil
	}

	if err := ensureInit(); err != nil {
		return nil, fmt.Errorf("%w: init: %v", audio.ErrDeviceUnavailable, err)
	}

	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: no input device: %v", audio.ErrDeviceUnavailable, err)
	}

	params := portaudio.LowLatencyParameters(in, nil)
	params.Input.Channels = 1
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(audio.InputFormat.SampleRate)
	params.FramesPerBuffer = audio.BlockSamples

	buf := make([]int16, audio.BlockSamples)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, mapOpenError(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, mapOpenError(err)
	}

	c.stream = stream
	c.frames = make(chan audio.Frame, 8)
	c.done = make(chan struct{})
	c.started = true
	slog.Debug("capture started", "device", in.Name, "rate", audio.InputFormat.SampleRate)

	go c.readLoop(ctx, stream, buf, c.frames, c.done)

	return c.frames, nil
}

// readLoop blocks on the device for each frame and forwards copies on the
// frame channel. It owns the channel and closes it on exit.
func (c *Capture) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, frames chan<- audio.Frame, done <-chan struct{}) {
	defer close(frames)

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Stream stopped underneath us (Stop closes it) or device error.
			select {
			case <-done:
			default:
				slog.Warn("capture read failed", "err", err)
			}
			return
		}

		samples := make([]int16, len(buf))
		copy(samples, buf)
		frame := audio.Frame{
			Samples:    samples,
			SampleRate: audio.InputFormat.SampleRate,
			Channels:   1,
			Timestamp:  time.Since(start),
		}

		// Never block the device thread on a slow consumer: drop the frame.
		select {
		case frames <- frame:
		default:
		}
	}
}

// Stop implements [audio.CaptureSource]. Releases the device stream
// unconditionally; idempotent and safe before Start.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	close(c.done)

	if c.stream != nil {
		_ = c.stream.Stop()
		_ = c.stream.Close()
		c.stream = nil
	}
	return nil
}

// ─── Speaker ──────────────────────────────────────────────────────────────────

// Speaker is an [audio.Sink] backed by the default portaudio output device at
// [audio.OutputFormat]. Frames at other mono rates are resampled before the
// device write.
type Speaker struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

// NewSpeaker opens the default output device at 24 kHz mono.
func NewSpeaker() (*Speaker, error) {
	if err := ensureInit(); err != nil {
		return nil, fmt.Errorf("%w: init: %v", audio.ErrDeviceUnavailable, err)
	}

	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: no output device: %v", audio.ErrDeviceUnavailable, err)
	}

	params := portaudio.LowLatencyParameters(nil, out)
	params.Input.Device = nil
	params.Input.Channels = 0
	params.Output.Channels = 1
	params.SampleRate = float64(audio.OutputFormat.SampleRate)
	params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified

	s := &Speaker{}
	stream, err := portaudio.OpenStream(params, &s.buf)
	if err != nil {
		return nil, mapOpenError(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, mapOpenError(err)
	}
	s.stream = stream
	return s, nil
}

// Write implements [audio.Sink]. Blocks until the frame has been handed to the
// device buffer.
func (s *Speaker) Write(f audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("device: speaker closed")
	}
	if f.SampleRate != audio.OutputFormat.SampleRate {
		f = audio.Resample(f, audio.OutputFormat.SampleRate)
	}
	s.buf = f.Samples
	if err := s.stream.Write(); err != nil {
		return fmt.Errorf("device: write: %w", err)
	}
	return nil
}

// Close implements [audio.Sink]. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream != nil {
		_ = s.stream.Stop()
		_ = s.stream.Close()
		s.stream = nil
	}
	return nil
}
