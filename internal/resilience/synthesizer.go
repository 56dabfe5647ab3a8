package resilience

import (
	"context"

	"github.com/danakov/voxengine/pkg/audio"
	"github.com/danakov/voxengine/pkg/provider/tts"
)

// Synthesizer wraps a [tts.Synthesizer] with a [Breaker] so a dead synthesis
// endpoint fails fast instead of stalling every clip-cache miss on a network
// timeout.
type Synthesizer struct {
	inner   tts.Synthesizer
	breaker *Breaker
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer guards inner with a breaker built from cfg.
func NewSynthesizer(inner tts.Synthesizer, cfg BreakerConfig) *Synthesizer {
	if cfg.Name == "" {
		cfg.Name = "tts"
	}
	return &Synthesizer{
		inner:   inner,
		breaker: NewBreaker(cfg),
	}
}

// Synthesize forwards to the wrapped synthesizer through the breaker. While
// the breaker is open it returns [ErrUnavailable] immediately.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) (audio.Frame, error) {
	var frame audio.Frame
	err := s.breaker.Do(func() error {
		var err error
		frame, err = s.inner.Synthesize(ctx, text, voice)
		return err
	})
	if err != nil {
		return audio.Frame{}, err
	}
	return frame, nil
}

// BreakerState exposes the guard's state for health reporting.
func (s *Synthesizer) BreakerState() BreakerState {
	return s.breaker.State()
}
