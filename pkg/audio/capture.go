package audio

import (
	"context"
	"errors"
)

// Typed capture errors. Device adapters map platform-specific failures onto
// these so callers can distinguish a denied permission (recoverable, engine
// stays not-started) from a missing or busy device.
var (
	// ErrPermissionDenied indicates the OS or user refused microphone access.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceUnavailable indicates no usable input device was found or the
	// device could not be opened.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")
)

// CaptureSource owns exactly one microphone stream and emits fixed-size PCM
// frames at the capture tick (one [Frame] of [BlockSamples] samples every
// ~256 ms at 16 kHz).
//
// Implementations must be safe for concurrent use.
type CaptureSource interface {
	// Start opens the device and returns the frame channel. Calling Start
	// while already started is a no-op that returns the existing channel —
	// a source never opens two device streams. The channel is closed when the
	// source is stopped or the device stream ends.
	//
	// Returns [ErrPermissionDenied] or [ErrDeviceUnavailable] (wrapped) when
	// the device cannot be opened; the source is left in the not-started state.
	Start(ctx context.Context) (<-chan Frame, error)

	// Stop releases the device unconditionally. It is idempotent and safe to
	// call even if Start never succeeded or the source is already stopped.
	Stop() error
}

// Sink is a push playback device. Write blocks until the frame has been
// handed to the device buffer; it does not wait for audible completion.
//
// Implementations must be safe for concurrent use; the playback scheduler and
// the clip cache share a sink type but never a sink instance.
type Sink interface {
	Write(Frame) error
	Close() error
}
