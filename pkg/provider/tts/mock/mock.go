// Package mock provides a counting in-memory implementation of the
// tts.Synthesizer interface for use in unit tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/danakov/voxengine/pkg/audio"
	"github.com/danakov/voxengine/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a mock tts.Synthesizer that fabricates deterministic frames
// and counts calls per text, which is how write-once cache tests detect
// duplicate synthesis.
type Synthesizer struct {
	mu sync.Mutex

	// Err is returned by Synthesize when non-nil.
	Err error

	// ErrFor returns an error only for specific texts.
	ErrFor map[string]error

	// Delay simulates synthesis latency. Zero means immediate.
	Delay time.Duration

	// FrameSamples is the sample count of fabricated frames (default 240,
	// i.e. 10 ms at 24 kHz).
	FrameSamples int

	calls map[string]int
}

// Synthesize implements tts.Synthesizer. The fabricated frame's first sample
// is the length of the text, so tests can tell clips apart.
func (s *Synthesizer) Synthesize(ctx context.Context, text, _ string) (audio.Frame, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[text]++
	err := s.Err
	if e, ok := s.ErrFor[text]; ok {
		err = e
	}
	delay := s.Delay
	n := s.FrameSamples
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return audio.Frame{}, ctx.Err()
		}
	}
	if err != nil {
		return audio.Frame{}, err
	}

	if n == 0 {
		n = 240
	}
	samples := make([]int16, n)
	if len(samples) > 0 {
		samples[0] = int16(len(text))
	}
	return audio.Frame{
		Samples:    samples,
		SampleRate: audio.OutputFormat.SampleRate,
		Channels:   1,
	}, nil
}

// Calls returns how many times Synthesize was invoked for the given text.
func (s *Synthesizer) Calls(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[text]
}

// TotalCalls returns the total number of Synthesize invocations.
func (s *Synthesizer) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}
