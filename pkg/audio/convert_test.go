package audio_test

import (
	"testing"

	"github.com/danakov/voxengine/pkg/audio"
)

func TestResample_SameRate(t *testing.T) {
	t.Parallel()
	f := audio.Frame{Samples: []int16{100, 200, 300}, SampleRate: 16000, Channels: 1}
	out := audio.Resample(f, 16000)
	if len(out.Samples) != 3 {
		t.Fatalf("sample count = %d; want 3", len(out.Samples))
	}
}

func TestResample_Upsample(t *testing.T) {
	t.Parallel()
	// 2 samples at 16kHz → 3 samples at 24kHz (1.5x)
	f := audio.Frame{Samples: []int16{1000, 2000}, SampleRate: 16000, Channels: 1}
	out := audio.Resample(f, 24000)
	if len(out.Samples) != 3 {
		t.Fatalf("sample count = %d; want 3", len(out.Samples))
	}
	if out.SampleRate != 24000 {
		t.Errorf("SampleRate = %d; want 24000", out.SampleRate)
	}
	if out.Samples[0] != 1000 {
		t.Errorf("first sample = %d; want 1000", out.Samples[0])
	}
}

func TestResample_Downsample(t *testing.T) {
	t.Parallel()
	// 6 samples at 48kHz → 2 samples at 16kHz
	f := audio.Frame{Samples: []int16{100, 200, 300, 400, 500, 600}, SampleRate: 48000, Channels: 1}
	out := audio.Resample(f, 16000)
	if len(out.Samples) != 2 {
		t.Fatalf("sample count = %d; want 2", len(out.Samples))
	}
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()
	got := audio.MonoToStereo([]int16{100, 200})
	want := []int16{100, 100, 200, 200}
	if len(got) != len(want) {
		t.Fatalf("length = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	t.Parallel()
	got := audio.StereoToMono([]int16{32767, 32767, -100, -200})
	want := []int16{32767, -150}
	if len(got) != len(want) {
		t.Fatalf("length = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
