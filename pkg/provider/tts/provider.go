// Package tts defines the contract for one-shot voice synthesis providers.
//
// Unlike the live provider, a synthesizer takes a complete text and returns a
// complete decoded frame. It backs the clip cache, which pre-fetches short
// fixed phrases for near-instant playback.
package tts

import (
	"context"
	"errors"

	"github.com/danakov/voxengine/pkg/audio"
)

// ErrEmptyText is returned when Synthesize is called with an empty text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// Synthesizer converts a text into one decoded 24 kHz mono frame.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (audio.Frame, error)
}
