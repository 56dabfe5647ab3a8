// Package live defines the contract for bidirectional live-audio providers.
//
// A live provider accepts a continuous stream of encoded microphone audio and
// returns synthesized speech audio plus control signals (interruption, close)
// on a single event channel. Implementations live in subpackages; the mock
// subpackage provides a scripted session for tests.
package live

import (
	"context"
	"errors"

	"github.com/danakov/voxengine/pkg/audio"
)

// ErrSessionClosed is returned by SendAudio after the session has been closed.
var ErrSessionClosed = errors.New("live: session closed")

// Config holds the per-session parameters. The response modality is always
// audio.
type Config struct {
	// Voice selects the provider's prebuilt voice. Empty uses the provider
	// default.
	Voice string

	// Instructions is the system instruction for the conversation. Optional.
	Instructions string
}

// EventKind discriminates the Event union.
type EventKind int

const (
	// KindOpened fires once when the provider acknowledges session setup.
	KindOpened EventKind = iota + 1

	// KindAudio carries one decoded frame of synthesized speech.
	KindAudio

	// KindInterrupted signals that the remote end cut off its own response,
	// typically because the user started speaking. Audio already delivered
	// for the cancelled response should be discarded.
	KindInterrupted

	// KindClosed signals that the remote end closed the session. The event
	// channel is closed after this event.
	KindClosed

	// KindError carries a non-fatal provider error.
	KindError
)

// String returns the kind name for logging.
func (k EventKind) String() string {
	switch k {
	case KindOpened:
		return "opened"
	case KindAudio:
		return "audio"
	case KindInterrupted:
		return "interrupted"
	case KindClosed:
		return "closed"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one occurrence on a live session. Frame is set only for KindAudio,
// Err only for KindError.
type Event struct {
	Kind  EventKind
	Frame audio.Frame
	Err   error
}

// Session is a handle to one open live-audio conversation.
//
// The Events channel is owned by the session: it is closed when the session
// ends, whether by Close, remote shutdown, or a transport failure. After the
// channel closes, Err reports the terminating error, if any.
type Session interface {
	// SendAudio delivers one encoded microphone chunk to the remote model.
	// Returns ErrSessionClosed after Close.
	SendAudio(chunk audio.EncodedChunk) error

	// Events returns the channel on which audio and control events arrive.
	Events() <-chan Event

	// Err returns the first error that terminated the session, or nil.
	Err() error

	// Close terminates the session and releases the network handle.
	// Idempotent.
	Close() error
}

// Provider creates live sessions.
type Provider interface {
	Connect(ctx context.Context, cfg Config) (Session, error)
}
