package config_test

import (
	"strings"
	"testing"

	"github.com/danakov/voxengine/internal/config"
)

const validYAML = `
engine:
  capture_rate: 16000
  playback_rate: 24000
  fft_size: 2048
live:
  api_key: test-key
  voice: Puck
  instructions: Be concise.
clips:
  preload:
    - "hello"
    - "one moment"
server:
  log_level: debug
  metrics_addr: ":9090"
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Live.Voice != "Puck" {
		t.Errorf("Live.Voice = %q; want Puck", cfg.Live.Voice)
	}
	if len(cfg.Clips.Preload) != 2 {
		t.Errorf("len(Clips.Preload) = %d; want 2", len(cfg.Clips.Preload))
	}
	if cfg.Server.LogLevel.Slog().String() != "DEBUG" {
		t.Errorf("log level = %v; want DEBUG", cfg.Server.LogLevel.Slog())
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("live:\n  api_key: k\n  voice: Kore\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Engine.CaptureRate != 16000 {
		t.Errorf("CaptureRate default = %d; want 16000", cfg.Engine.CaptureRate)
	}
	if cfg.Engine.PlaybackRate != 24000 {
		t.Errorf("PlaybackRate default = %d; want 24000", cfg.Engine.PlaybackRate)
	}
	if cfg.Engine.FFTSize != 2048 {
		t.Errorf("FFTSize default = %d; want 2048", cfg.Engine.FFTSize)
	}
	if cfg.TTS.APIKey != "k" {
		t.Errorf("TTS.APIKey = %q; want fallback to live key", cfg.TTS.APIKey)
	}
	if cfg.TTS.Voice != "Kore" {
		t.Errorf("TTS.Voice = %q; want fallback to live voice", cfg.TTS.Voice)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("live:\n  api_key: k\nbogus: true\n"))
	if err == nil {
		t.Fatal("unknown top-level field should be rejected")
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()

	bad := `
engine:
  capture_rate: -1
  fft_size: 1000
live:
  api_key: ""
clips:
  preload:
    - ""
    - "dup"
    - "dup"
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"capture_rate",
		"fft_size",
		"api_key is required",
		"log_level",
		"must not be empty",
		"duplicate",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q should mention %q", err, want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/does/not/exist.yml"); err == nil {
		t.Fatal("Load of a missing file should return an error")
	}
}
