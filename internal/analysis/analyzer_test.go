package analysis_test

import (
	"math"
	"testing"
	"time"

	"github.com/danakov/voxengine/internal/analysis"
	"github.com/danakov/voxengine/pkg/audio"
)

// sineFrame builds a mono frame with a pure tone at freq Hz.
func sineFrame(n int, rate int, freq float64) audio.Frame {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(20000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return audio.Frame{Samples: samples, SampleRate: rate, Channels: 1}
}

// waitForPeak polls until the analyzer reports a non-zero peak frequency.
func waitForPeak(t *testing.T, a *analysis.Analyzer) analysis.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if snap := a.Snapshot(); snap.PeakFrequencyHz > 0 {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timeout waiting for a non-zero snapshot")
	return analysis.Snapshot{}
}

func TestSnapshot_PeakFrequencyOfSine(t *testing.T) {
	t.Parallel()

	const (
		rate    = 16000
		fftSize = 2048
	)
	// Exactly bin 128 of a 2048-point FFT at 16 kHz.
	const freq = 128.0 * rate / fftSize // 1000 Hz

	frames := make(chan audio.Frame)
	a := analysis.New(frames, analysis.WithFFTSize(fftSize), analysis.WithTick(0))
	defer a.Close()

	frames <- sineFrame(audio.BlockSamples, rate, freq)
	snap := waitForPeak(t, a)

	binWidth := float64(rate) / fftSize
	if math.Abs(snap.PeakFrequencyHz-freq) > binWidth {
		t.Errorf("PeakFrequencyHz = %.1f; want %.1f ± %.1f", snap.PeakFrequencyHz, freq, binWidth)
	}
	if snap.AverageLevel <= 0 {
		t.Errorf("AverageLevel = %v; want > 0 for a loud tone", snap.AverageLevel)
	}
	if len(snap.Magnitudes) != fftSize/2+1 {
		t.Errorf("len(Magnitudes) = %d; want %d", len(snap.Magnitudes), fftSize/2+1)
	}
}

func TestSnapshot_BeforeAnyFrame(t *testing.T) {
	t.Parallel()

	frames := make(chan audio.Frame)
	a := analysis.New(frames)
	defer a.Close()

	snap := a.Snapshot()
	if snap.AverageLevel != 0 || snap.PeakFrequencyHz != 0 {
		t.Errorf("empty snapshot = %+v; want zero values", snap)
	}
}

func TestSnapshot_CachedWithinTick(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	frames := make(chan audio.Frame, 4)
	a := analysis.New(frames,
		analysis.WithFFTSize(512),
		analysis.WithTick(time.Second/60),
		analysis.WithClock(now),
	)
	defer a.Close()

	frames <- sineFrame(audio.BlockSamples, 16000, 1000)
	first := waitForPeak(t, a)

	// New audio arrives, but the clock has not advanced a full tick: readers
	// keep getting the cached spectrum.
	frames <- sineFrame(audio.BlockSamples, 16000, 3000)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		again := a.Snapshot()
		if again.PeakFrequencyHz != first.PeakFrequencyHz {
			t.Fatalf("snapshot changed within one tick: %v -> %v",
				first.PeakFrequencyHz, again.PeakFrequencyHz)
		}
		time.Sleep(time.Millisecond)
	}

	// Advancing past the tick picks up the new tone.
	clock = clock.Add(time.Second)
	recomputed := a.Snapshot()
	if recomputed.PeakFrequencyHz == first.PeakFrequencyHz {
		t.Errorf("snapshot did not recompute after the tick elapsed")
	}
}

func TestSnapshot_LastKnownAfterChannelClose(t *testing.T) {
	t.Parallel()

	frames := make(chan audio.Frame, 1)
	a := analysis.New(frames, analysis.WithFFTSize(512), analysis.WithTick(0))
	defer a.Close()

	frames <- sineFrame(audio.BlockSamples, 16000, 1000)
	before := waitForPeak(t, a)

	close(frames)
	time.Sleep(10 * time.Millisecond)

	after := a.Snapshot()
	if after.PeakFrequencyHz != before.PeakFrequencyHz {
		t.Errorf("snapshot changed after channel close: %v -> %v",
			before.PeakFrequencyHz, after.PeakFrequencyHz)
	}
}

func TestSnapshot_ReturnsStableCopy(t *testing.T) {
	t.Parallel()

	frames := make(chan audio.Frame, 1)
	a := analysis.New(frames, analysis.WithFFTSize(512), analysis.WithTick(0))
	defer a.Close()

	frames <- sineFrame(audio.BlockSamples, 16000, 1000)
	snap := waitForPeak(t, a)

	// Mutating the returned slice must not affect later readers.
	for i := range snap.Magnitudes {
		snap.Magnitudes[i] = -1
	}
	again := a.Snapshot()
	for i, m := range again.Magnitudes {
		if m < 0 {
			t.Fatalf("Magnitudes[%d] = %v; caller mutation leaked into the analyzer", i, m)
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	frames := make(chan audio.Frame)
	a := analysis.New(frames)
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
